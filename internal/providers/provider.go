// internal/providers/provider.go

// Package providers defines the contract between the application and the hosts that
// expose AI capabilities. A Provider answers availability probes and creates sessions;
// a Session runs batch or streaming invocations until it is destroyed.
package providers

import (
	"context"
	"errors"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
)

var (
	// ErrUnsupported is returned when a host cannot serve the requested operation.
	ErrUnsupported = errors.New("operation not supported by host")
	// ErrSessionDestroyed is returned when a destroyed session is invoked.
	ErrSessionDestroyed = errors.New("session destroyed")
)

// ChatMessage represents a single message in a chat conversation.
// It contains the role of the message sender (e.g., "user", "assistant") and the message content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Target identifies the host and model that serve a capability.
type Target struct {
	Host  appconfig.Host
	Model string
}

// Request names a capability, where it runs, and the options of the session.
type Request struct {
	Capability capability.Name
	Target     Target
	Config     capability.Config
}

// ProgressFunc receives model download progress as a fraction in [0,1].
// Providers may report values out of range or out of order; callers normalize them.
type ProgressFunc func(loaded float64)

// Provider is the interface every capability host implements.
type Provider interface {
	// Availability reports whether the capability can be used with the given options.
	Availability(ctx context.Context, req Request) (capability.Availability, error)
	// Create prepares a session, downloading the model first when needed.
	Create(ctx context.Context, req Request, progress ProgressFunc) (Session, error)
	// Close cleans up any resources used by the provider.
	Close() error
}

// Session is a live capability session created by a Provider.
type Session interface {
	// Invoke runs the capability and returns the complete output.
	Invoke(ctx context.Context, input string, opts capability.InvokeOptions) (string, error)
	// InvokeStreaming runs the capability and calls onChunk for every chunk in order.
	// Returning an error from onChunk aborts the stream with that error.
	InvokeStreaming(ctx context.Context, input string, opts capability.InvokeOptions, onChunk func(string) error) error
	// ChunkMode declares whether streamed chunks are deltas or the full text so far.
	ChunkMode() capability.ChunkMode
	// Destroy releases the session. Calling it more than once is allowed.
	Destroy() error
}

// TokenCounter is implemented by sessions that can estimate input size.
type TokenCounter interface {
	CountTokens(ctx context.Context, input string) (int, error)
}

// Detector is implemented by sessions that rank candidate languages for an input.
type Detector interface {
	Detect(ctx context.Context, input string) ([]capability.Detection, error)
}
