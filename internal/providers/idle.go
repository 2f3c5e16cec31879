// internal/providers/idle.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStreamStalled reports a streamed response that sent nothing for the idle window.
// It wraps context.DeadlineExceeded so callers treat it as a failure, not a cancellation.
var ErrStreamStalled = fmt.Errorf("stream stalled: %w", context.DeadlineExceeded)

// IdleTimer bounds a streamed request by the gap between reads rather than by its
// total duration. A nil IdleTimer does nothing.
type IdleTimer struct {
	idle   time.Duration
	timer  *time.Timer
	cancel context.CancelCauseFunc
}

// WithIdleTimeout returns a context cancelled with ErrStreamStalled once idle passes
// without a call to Touch. A non-positive idle disables the timer.
func WithIdleTimeout(parent context.Context, idle time.Duration) (context.Context, *IdleTimer) {
	ctx, cancel := context.WithCancelCause(parent)
	t := &IdleTimer{idle: idle, cancel: cancel}
	if idle > 0 {
		t.timer = time.AfterFunc(idle, func() { cancel(ErrStreamStalled) })
	}
	return ctx, t
}

// Touch restarts the idle window after data arrived.
func (t *IdleTimer) Touch() {
	if t == nil || t.timer == nil {
		return
	}
	t.timer.Reset(t.idle)
}

// Stop releases the timer and the context.
func (t *IdleTimer) Stop() {
	if t == nil {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.cancel(nil)
}

// Err maps an error from a request made under ctx to ErrStreamStalled when the idle
// window caused it.
func (t *IdleTimer) Err(ctx context.Context, err error) error {
	if t == nil || err == nil {
		return err
	}
	if errors.Is(context.Cause(ctx), ErrStreamStalled) {
		return ErrStreamStalled
	}
	return err
}
