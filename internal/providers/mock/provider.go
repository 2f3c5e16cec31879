// internal/providers/mock/provider.go
// Package mock provides a deterministic offline capability host. It needs no model,
// answers every capability with predictable text, streams cumulative chunks, and can
// simulate downloads and failures.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/prompts"
	"github.com/mwiater/aiplay/internal/providers"
)

// DefaultProgress is the sequence of download fractions reported for a downloadable capability.
var DefaultProgress = []float64{0, 0.25, 0.5, 0.75, 1}

// Options tune the behaviour of the mock host.
type Options struct {
	// Availability forces the probe answer per capability. Missing entries are available.
	Availability map[capability.Name]capability.Availability
	// ProbeErr is returned by every probe.
	ProbeErr error
	// Latency is the pause between streamed chunks and download steps.
	Latency time.Duration
	// Progress overrides DefaultProgress, including out-of-range or decreasing values.
	Progress []float64
	// CreateErr makes every Create fail.
	CreateErr error
	// InvokeErr makes invocations fail after FailAfter chunks have been emitted.
	InvokeErr error
	FailAfter int
	// Reply overrides the generated output.
	Reply string
}

// Provider is the mock implementation of providers.Provider.
type Provider struct {
	opts Options

	mu         sync.Mutex
	downloaded map[capability.Name]bool
	last       providers.Request

	created   atomic.Int32
	destroyed atomic.Int32
	invoked   atomic.Int32
}

// New constructs a mock Provider.
func New(opts Options) *Provider {
	return &Provider{opts: opts, downloaded: map[capability.Name]bool{}}
}

// FromConfig builds the demo host used for hosts of type "mock".
func FromConfig(_ *appconfig.Config) *Provider {
	return New(Options{Latency: 40 * time.Millisecond})
}

// Created returns how many sessions were created.
func (p *Provider) Created() int { return int(p.created.Load()) }

// Destroyed returns how many sessions were destroyed.
func (p *Provider) Destroyed() int { return int(p.destroyed.Load()) }

// LastRequest returns the request of the most recent Create call.
func (p *Provider) LastRequest() providers.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Invocations returns how many invocations were started.
func (p *Provider) Invocations() int { return int(p.invoked.Load()) }

// Availability answers from Options, or available by default. Translation between
// identical or unknown languages is unavailable.
func (p *Provider) Availability(ctx context.Context, req providers.Request) (capability.Availability, error) {
	if err := ctx.Err(); err != nil {
		return capability.Unavailable, err
	}
	if p.opts.ProbeErr != nil {
		return capability.Unavailable, p.opts.ProbeErr
	}
	if req.Capability == capability.Translator && !capability.SupportsPair(req.Config.SourceLanguage, req.Config.TargetLanguage) {
		return capability.Unavailable, nil
	}
	forced, ok := p.opts.Availability[req.Capability]
	if !ok {
		return capability.Available, nil
	}
	p.mu.Lock()
	done := p.downloaded[req.Capability]
	p.mu.Unlock()
	if forced == capability.Downloadable && done {
		return capability.Available, nil
	}
	return forced, nil
}

// Create simulates a download for downloadable capabilities and returns a session.
func (p *Provider) Create(ctx context.Context, req providers.Request, progress providers.ProgressFunc) (providers.Session, error) {
	p.mu.Lock()
	p.last = req
	p.mu.Unlock()
	if p.opts.CreateErr != nil {
		return nil, p.opts.CreateErr
	}
	avail, err := p.Availability(ctx, req)
	if err != nil {
		return nil, err
	}
	switch avail {
	case capability.Unavailable, capability.Unknown:
		return nil, fmt.Errorf("mock: %s is %s", req.Capability, avail)
	case capability.Downloadable:
		steps := p.opts.Progress
		if steps == nil {
			steps = DefaultProgress
		}
		for _, f := range steps {
			if err := p.sleep(ctx); err != nil {
				return nil, err
			}
			if progress != nil {
				progress(f)
			}
		}
		p.mu.Lock()
		p.downloaded[req.Capability] = true
		p.mu.Unlock()
	}
	p.created.Add(1)
	return &session{provider: p, req: req, history: prompts.NewConversation(req.Capability)}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) sleep(ctx context.Context) error {
	if p.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type session struct {
	provider  *Provider
	req       providers.Request
	history   *prompts.Conversation
	destroyed atomic.Bool
}

func (s *session) output(input string, opts capability.InvokeOptions) string {
	if s.provider.opts.Reply != "" {
		return s.provider.opts.Reply
	}
	out := Respond(s.req.Capability, s.req.Config, input, opts)
	if n := s.history.Turns(); n > 0 {
		out += fmt.Sprintf(" (%d earlier turns)", n)
	}
	return out
}

func (s *session) remember(ctx context.Context, input, reply string) {
	if ctx.Err() != nil || s.destroyed.Load() {
		return
	}
	s.history.Record(providers.ChatMessage{Role: "user", Content: strings.TrimSpace(input)}, reply)
}

// Turns returns the number of exchanges a languageModel session remembers.
func (s *session) Turns() int {
	return s.history.Turns()
}

func (s *session) Invoke(ctx context.Context, input string, opts capability.InvokeOptions) (string, error) {
	if s.destroyed.Load() {
		return "", providers.ErrSessionDestroyed
	}
	s.provider.invoked.Add(1)
	if err := s.provider.sleep(ctx); err != nil {
		return "", err
	}
	if s.provider.opts.InvokeErr != nil {
		return "", s.provider.opts.InvokeErr
	}
	out := s.output(input, opts)
	s.remember(ctx, input, out)
	return out, nil
}

// InvokeStreaming emits the answer word by word, each chunk carrying the text so far.
func (s *session) InvokeStreaming(ctx context.Context, input string, opts capability.InvokeOptions, onChunk func(string) error) error {
	if s.destroyed.Load() {
		return providers.ErrSessionDestroyed
	}
	s.provider.invoked.Add(1)
	var sofar strings.Builder
	out := s.output(input, opts)
	for i, word := range splitKeepSpace(out) {
		if s.provider.opts.InvokeErr != nil && i >= s.provider.opts.FailAfter {
			return s.provider.opts.InvokeErr
		}
		if err := s.provider.sleep(ctx); err != nil {
			return err
		}
		sofar.WriteString(word)
		if onChunk != nil {
			if err := onChunk(sofar.String()); err != nil {
				return err
			}
		}
	}
	if s.provider.opts.InvokeErr != nil {
		return s.provider.opts.InvokeErr
	}
	s.remember(ctx, input, out)
	return nil
}

func (s *session) ChunkMode() capability.ChunkMode {
	return capability.Cumulative
}

func (s *session) CountTokens(ctx context.Context, input string) (int, error) {
	if s.destroyed.Load() {
		return 0, providers.ErrSessionDestroyed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return CountTokens(input), nil
}

func (s *session) Detect(ctx context.Context, input string) ([]capability.Detection, error) {
	if s.destroyed.Load() {
		return nil, providers.ErrSessionDestroyed
	}
	s.provider.invoked.Add(1)
	if err := s.provider.sleep(ctx); err != nil {
		return nil, err
	}
	if s.provider.opts.InvokeErr != nil {
		return nil, s.provider.opts.InvokeErr
	}
	return Detect(input), nil
}

func (s *session) Destroy() error {
	if s.destroyed.CompareAndSwap(false, true) {
		s.provider.destroyed.Add(1)
		s.history.Reset()
	}
	return nil
}

// splitKeepSpace splits text into words that keep their trailing whitespace so the
// pieces concatenate back to the original.
func splitKeepSpace(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !space {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
