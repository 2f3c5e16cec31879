// internal/session/runner.go
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/providers"
)

// Mode selects how an invocation delivers its output.
type Mode int

const (
	// Batch waits for the complete result.
	Batch Mode = iota
	// Streaming delivers the accumulated output after every chunk.
	Streaming
)

func (m Mode) String() string {
	if m == Streaming {
		return "streaming"
	}
	return "batch"
}

// Status is how an invocation ended.
type Status int

const (
	StatusCompleted Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result is the outcome of one invocation. Text holds the final output, or the
// partial output when the invocation was cancelled or failed.
type Result struct {
	Text       string
	Status     Status
	Chunks     int
	Detections []capability.Detection
}

// Runner executes invocations against sessions. Starting an invocation cancels
// the one in flight and waits for it to return, so at most one runs at a time.
type Runner struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner constructs a Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// begin supersedes the invocation in flight and registers a new one.
func (r *Runner) begin(parent context.Context) (context.Context, uint64, func()) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	previous := r.done
	r.gen++
	gen := r.gen
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	if previous != nil {
		<-previous
	}

	return ctx, gen, func() {
		cancel()
		r.mu.Lock()
		if r.done == done {
			r.cancel, r.done = nil, nil
		}
		r.mu.Unlock()
		close(done)
	}
}

func (r *Runner) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}

// Cancel aborts the invocation in flight. Its updates stop and it ends with
// StatusCancelled.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
}

// Wait blocks until the invocation in flight, if any, has returned.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Invoke runs input against the session. In streaming mode onUpdate receives the
// accumulated text after every chunk, in emission order. Cancellation is reported
// through Result.Status with a nil error; any other failure returns an
// *InvocationError and keeps the partial text in the Result.
func (r *Runner) Invoke(ctx context.Context, sess *Session, input string, mode Mode, opts capability.InvokeOptions, onUpdate func(text string)) (Result, error) {
	handle, err := sess.Handle()
	if err != nil {
		return Result{Status: StatusFailed}, err
	}

	ictx, gen, release := r.begin(ctx)
	defer release()

	if mode == Batch {
		text, err := handle.Invoke(ictx, input, opts)
		if r.cancelled(ictx, gen, err) {
			return Result{Status: StatusCancelled}, nil
		}
		if err != nil {
			return r.fail(sess, Result{}, err)
		}
		return Result{Text: text, Status: StatusCompleted}, nil
	}

	acc := newAccumulator(handle.ChunkMode())
	res := Result{}
	err = handle.InvokeStreaming(ictx, input, opts, func(chunk string) error {
		if err := ictx.Err(); err != nil {
			return err
		}
		if !r.current(gen) {
			return context.Canceled
		}
		res.Text = acc.apply(chunk)
		res.Chunks++
		if onUpdate != nil {
			onUpdate(res.Text)
		}
		return nil
	})
	if r.cancelled(ictx, gen, err) {
		res.Status = StatusCancelled
		return res, nil
	}
	if err != nil {
		return r.fail(sess, res, err)
	}
	res.Status = StatusCompleted
	return res, nil
}

// Detect ranks candidate languages for input. It supersedes and is superseded by
// other invocations on the runner like Invoke.
func (r *Runner) Detect(ctx context.Context, sess *Session, input string) (Result, error) {
	handle, err := sess.Handle()
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	detector, ok := handle.(providers.Detector)
	if !ok {
		return r.fail(sess, Result{}, providers.ErrUnsupported)
	}

	ictx, gen, release := r.begin(ctx)
	defer release()

	results, err := detector.Detect(ictx, input)
	if r.cancelled(ictx, gen, err) {
		return Result{Status: StatusCancelled}, nil
	}
	if err != nil {
		return r.fail(sess, Result{}, err)
	}
	res := Result{Status: StatusCompleted, Detections: results}
	if len(results) > 0 {
		res.Text = results[0].Language
	}
	return res, nil
}

// Estimate counts the tokens of input. It does not interact with invocations.
func (r *Runner) Estimate(ctx context.Context, sess *Session, input string) (int, error) {
	handle, err := sess.Handle()
	if err != nil {
		return 0, err
	}
	counter, ok := handle.(providers.TokenCounter)
	if !ok {
		return 0, ErrEstimateUnsupported
	}
	n, err := counter.CountTokens(ctx, input)
	if errors.Is(err, providers.ErrUnsupported) {
		return 0, ErrEstimateUnsupported
	}
	if err != nil {
		logging.LogSession(string(sess.Capability), sess.ID, "estimate failed: %v", err)
		return 0, err
	}
	return n, nil
}

// cancelled reports whether the invocation ended because it was cancelled or
// superseded. Deadlines are failures, not cancellations.
func (r *Runner) cancelled(ctx context.Context, gen uint64, err error) bool {
	if !r.current(gen) {
		return true
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (r *Runner) fail(sess *Session, res Result, err error) (Result, error) {
	logging.LogSession(string(sess.Capability), sess.ID, "invocation failed: %v", err)
	res.Status = StatusFailed
	return res, &InvocationError{Capability: sess.Capability, Partial: res.Text, Err: err}
}

// accumulator folds chunks into the text so far according to the chunk mode.
type accumulator struct {
	mode capability.ChunkMode
	buf  strings.Builder
	last string
}

func newAccumulator(mode capability.ChunkMode) *accumulator {
	return &accumulator{mode: mode}
}

func (a *accumulator) apply(chunk string) string {
	if a.mode == capability.Cumulative {
		a.last = chunk
		return a.last
	}
	a.buf.WriteString(chunk)
	return a.buf.String()
}
