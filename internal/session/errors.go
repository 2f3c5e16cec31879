// internal/session/errors.go
package session

import (
	"errors"
	"fmt"

	"github.com/mwiater/aiplay/internal/capability"
)

var (
	// ErrCapabilityUnavailable is returned when an action needs a capability the host cannot serve.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrSessionDisposed is returned when a disposed session or unmounted feature is used.
	ErrSessionDisposed = errors.New("session disposed")
	// ErrNoSession is returned when an operation needs a live session and none exists.
	ErrNoSession = errors.New("no live session")
	// ErrEmptyInput is returned when an action is attempted without input.
	ErrEmptyInput = errors.New("empty input")
	// ErrEstimateUnsupported is returned when the session cannot count tokens.
	ErrEstimateUnsupported = errors.New("estimate not supported by session")
	// ErrInvalidTransition is returned when the feature state machine rejects a move.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// CreationError reports that the host failed to create a session.
type CreationError struct {
	Capability capability.Name
	Err        error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s session: %v", e.Capability, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// InvocationError reports that an invocation failed for a reason other than
// cancellation. Partial holds the output produced before the failure.
type InvocationError struct {
	Capability capability.Name
	Partial    string
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Capability, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
