// internal/prompts/conversation.go
package prompts

import (
	"sync"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
)

// Conversation holds the completed turns of a languageModel session so later
// prompts are answered with the earlier exchange in view. A nil Conversation keeps
// no history, which is what every other capability uses.
type Conversation struct {
	mu    sync.Mutex
	turns []providers.ChatMessage
}

// NewConversation returns the history holder for a session of the capability, or nil
// when the capability answers every request on its own.
func NewConversation(name capability.Name) *Conversation {
	if name != capability.LanguageModel {
		return nil
	}
	return &Conversation{}
}

// Messages builds the request messages: the system prompt, the recorded turns, then
// the new user message, which is always last.
func (c *Conversation) Messages(name capability.Name, cfg capability.Config, input string, opts capability.InvokeOptions) []providers.ChatMessage {
	msgs := Messages(name, cfg, input, opts)
	if c == nil {
		return msgs
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.turns) == 0 {
		return msgs
	}
	out := make([]providers.ChatMessage, 0, len(msgs)+len(c.turns))
	out = append(out, msgs[:len(msgs)-1]...)
	out = append(out, c.turns...)
	return append(out, msgs[len(msgs)-1])
}

// Record appends a completed exchange. user is the last message returned by Messages.
func (c *Conversation) Record(user providers.ChatMessage, reply string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, user, providers.ChatMessage{Role: "assistant", Content: reply})
}

// Turns returns the number of recorded exchanges.
func (c *Conversation) Turns() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns) / 2
}

// Reset forgets every recorded turn.
func (c *Conversation) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}
