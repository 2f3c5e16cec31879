// internal/session/feature.go
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

// Options configure a Feature.
type Options struct {
	Provider   providers.Provider
	Bind       Binder
	Capability capability.Name
	Config     capability.Config
	Mode       Mode
	// FreshSessionPerCall disposes the session after every invocation.
	FreshSessionPerCall bool
	// EagerSession creates the session as soon as the capability is available.
	EagerSession bool
	// Observer receives a snapshot after every change. It is called without locks
	// held, possibly from several goroutines; Snapshot.Seq orders the calls.
	Observer func(Snapshot)
}

// Snapshot is the observable state of a Feature.
type Snapshot struct {
	Seq          uint64
	Capability   capability.Name
	State        State
	Availability capability.Availability
	Config       capability.Config
	Output       string
	Detections   []capability.Detection
	Err          string
	Progress     float64
	Tokens       int
	SessionID    string
	Mode         Mode
}

// ForCapability fills in the session policy each capability page uses: writing
// capabilities get a fresh session per call and the prompt page creates its session
// as soon as the capability is available.
func ForCapability(name capability.Name, base Options) Options {
	base.Capability = name
	switch name {
	case capability.Summarizer, capability.Writer, capability.Rewriter:
		base.FreshSessionPerCall = true
	case capability.LanguageModel:
		base.EagerSession = true
	}
	if !name.SupportsStreaming() {
		base.Mode = Batch
	}
	return base
}

// CanRun reports whether the primary action should be offered.
func (s Snapshot) CanRun() bool {
	return s.Availability.Usable() && s.State != StateProbing && s.State != StateDisposed
}

// Feature drives one capability page: it probes availability, manages the session,
// runs invocations, and exposes the result as snapshots.
type Feature struct {
	opts    Options
	gate    *Gate
	manager *Manager
	runner  *Runner

	mu         sync.Mutex
	m          machine
	mode       Mode
	cfg        capability.Config
	avail      capability.Availability
	output     string
	errMsg     string
	detections []capability.Detection
	progress   float64
	tokens     int
	seq        uint64
	run        uint64
	runCancel  context.CancelFunc
	probe      uint64
}

// NewFeature constructs a Feature in the idle state.
func NewFeature(opts Options) *Feature {
	return &Feature{
		opts:    opts,
		gate:    NewGate(opts.Provider, opts.Bind),
		manager: NewManager(opts.Provider, opts.Bind, opts.Capability),
		runner:  NewRunner(),
		cfg:     capability.Normalize(opts.Capability, opts.Config),
		mode:    opts.Mode,
	}
}

// SetMode switches between batch and streaming for later runs.
func (f *Feature) SetMode(mode Mode) {
	f.mu.Lock()
	if !f.opts.Capability.SupportsStreaming() {
		mode = Batch
	}
	f.mode = mode
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
}

// Capability returns the capability the feature drives.
func (f *Feature) Capability() capability.Name { return f.opts.Capability }

// Snapshot returns the current observable state.
func (f *Feature) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Config returns the effective config.
func (f *Feature) Config() capability.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// Mount probes availability and, for eager features, creates the session.
func (f *Feature) Mount(ctx context.Context) capability.Availability {
	f.mu.Lock()
	if f.m.state == StateDisposed {
		f.mu.Unlock()
		return capability.Unavailable
	}
	f.abortLocked()
	f.m.settle()
	_ = f.m.to(StateProbing)
	f.probe++
	p, cfg := f.probe, f.cfg
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)

	return f.reprobe(ctx, p, cfg)
}

func (f *Feature) reprobe(ctx context.Context, p uint64, cfg capability.Config) capability.Availability {
	avail := f.gate.Probe(ctx, f.opts.Capability, cfg)

	f.mu.Lock()
	if f.probe != p || f.m.state != StateProbing {
		f.mu.Unlock()
		return avail
	}
	f.avail = avail
	if avail.Usable() {
		_ = f.m.to(StateReady)
	} else {
		_ = f.m.to(StateUnavailable)
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)

	if avail == capability.Available && f.opts.EagerSession {
		f.prepare(ctx)
	}
	return avail
}

// prepare creates the session ahead of the first invocation.
func (f *Feature) prepare(ctx context.Context) {
	f.mu.Lock()
	if f.m.state != StateReady {
		f.mu.Unlock()
		return
	}
	_ = f.m.to(StateSessionCreating)
	id, rctx, cancel := f.startRunLocked(ctx)
	cfg := f.cfg
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
	defer cancel()

	_, _, err := f.manager.Acquire(rctx, cfg, f.progressFunc(id))

	f.mu.Lock()
	if f.run != id {
		f.mu.Unlock()
		return
	}
	f.runCancel = nil
	if err != nil {
		f.failCreateLocked(err)
	} else {
		_ = f.m.to(StateSessionReady)
		_ = f.m.to(StateReady)
	}
	snap = f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
}

// Reconfigure applies a new config. A change to a language pair re-probes
// availability; any change disposes the live session and cancels the invocation in
// flight. For translation, a target equal to the source is corrected to the next
// catalogue language. The effective config is returned.
func (f *Feature) Reconfigure(ctx context.Context, cfg capability.Config) (capability.Config, capability.Availability, error) {
	name := f.opts.Capability
	cfg = capability.Normalize(name, cfg)
	if name == capability.Translator && cfg.SourceLanguage == cfg.TargetLanguage {
		cfg.TargetLanguage = capability.CorrectTarget(cfg.SourceLanguage, cfg.TargetLanguage)
	}
	if err := capability.Validate(name, cfg); err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.cfg, f.avail, err
	}

	f.mu.Lock()
	if f.m.state == StateDisposed {
		f.mu.Unlock()
		return cfg, capability.Unavailable, ErrSessionDisposed
	}
	old := f.cfg
	if old.Equal(cfg) {
		avail := f.avail
		f.mu.Unlock()
		return cfg, avail, nil
	}
	f.cfg = cfg
	f.abortLocked()
	f.m.settle()
	needsProbe := old.AvailabilityKey() != cfg.AvailabilityKey() || f.m.state == StateUnavailable || f.m.state == StateIdle
	var p uint64
	if needsProbe {
		_ = f.m.to(StateProbing)
		f.probe++
		p = f.probe
	}
	avail := f.avail
	snap := f.snapshotLocked()
	f.mu.Unlock()

	_ = f.manager.Dispose()
	f.notify(snap)

	if needsProbe {
		return cfg, f.reprobe(ctx, p, cfg), nil
	}
	if avail == capability.Available && f.opts.EagerSession {
		f.prepare(ctx)
	}
	return cfg, avail, nil
}

// Run invokes the capability with input and blocks until it ends. A run started
// while another is in flight supersedes it. Cancellation returns StatusCancelled
// with a nil error.
func (f *Feature) Run(ctx context.Context, input string, opts capability.InvokeOptions) (Result, error) {
	f.mu.Lock()
	mode := f.mode
	f.mu.Unlock()
	return f.execute(ctx, input, func(ctx context.Context, sess *Session, onUpdate func(string)) (Result, error) {
		return f.runner.Invoke(ctx, sess, input, mode, opts, onUpdate)
	})
}

// Detect ranks candidate languages for input. Blank input clears the results.
func (f *Feature) Detect(ctx context.Context, input string) (Result, error) {
	if strings.TrimSpace(input) == "" {
		f.mu.Lock()
		if f.m.state != StateDisposed {
			f.abortLocked()
			f.m.settle()
			f.detections, f.output, f.errMsg = nil, "", ""
		}
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.notify(snap)
		return Result{Status: StatusCompleted}, nil
	}
	return f.execute(ctx, input, func(ctx context.Context, sess *Session, _ func(string)) (Result, error) {
		return f.runner.Detect(ctx, sess, input)
	})
}

type call func(ctx context.Context, sess *Session, onUpdate func(string)) (Result, error)

func (f *Feature) execute(ctx context.Context, input string, invoke call) (Result, error) {
	name := f.opts.Capability

	f.mu.Lock()
	if f.m.state == StateDisposed {
		f.mu.Unlock()
		return Result{Status: StatusFailed}, ErrSessionDisposed
	}
	if strings.TrimSpace(input) == "" {
		f.errMsg = capability.EmptyInputMessage(name)
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.notify(snap)
		return Result{Status: StatusFailed}, ErrEmptyInput
	}
	if f.m.state == StateProbing || f.m.state == StateIdle || !f.avail.Usable() {
		f.mu.Unlock()
		return Result{Status: StatusFailed}, ErrCapabilityUnavailable
	}

	f.abortLocked()
	f.m.settle()
	cfg := f.cfg
	live := f.manager.Current()
	reuse := !f.opts.FreshSessionPerCall && live != nil && live.Config.Equal(cfg)
	if reuse {
		_ = f.m.to(StateSessionReady)
	} else {
		_ = f.m.to(StateSessionCreating)
	}
	id, rctx, cancel := f.startRunLocked(ctx)
	f.output, f.errMsg, f.detections, f.progress = "", "", nil, 0
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
	defer cancel()

	sess := live
	if !reuse {
		var err error
		if f.opts.FreshSessionPerCall {
			sess, err = f.manager.Create(rctx, cfg, f.progressFunc(id))
		} else {
			sess, _, err = f.manager.Acquire(rctx, cfg, f.progressFunc(id))
		}
		if err != nil {
			return f.finishCreate(id, err)
		}
		if !f.advance(id, StateSessionReady) {
			f.release(sess)
			return Result{Status: StatusCancelled}, nil
		}
	}
	if !f.advance(id, StateInvoking) {
		f.release(sess)
		return Result{Status: StatusCancelled}, nil
	}

	res, err := invoke(rctx, sess, func(text string) {
		f.mu.Lock()
		if f.run != id {
			f.mu.Unlock()
			return
		}
		f.output = text
		_ = f.m.to(StateStreamingPartial)
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.notify(snap)
	})
	f.release(sess)
	return f.finish(id, res, err)
}

// release disposes a per-call session once its invocation is over.
func (f *Feature) release(sess *Session) {
	if f.opts.FreshSessionPerCall {
		_ = sess.Dispose()
	}
}

func (f *Feature) advance(id uint64, next State) bool {
	f.mu.Lock()
	if f.run != id {
		f.mu.Unlock()
		return false
	}
	_ = f.m.to(next)
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
	return true
}

func (f *Feature) finishCreate(id uint64, err error) (Result, error) {
	f.mu.Lock()
	if f.run != id {
		f.mu.Unlock()
		return Result{Status: StatusCancelled}, nil
	}
	f.runCancel = nil
	cancelled := f.failCreateLocked(err)
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
	if cancelled {
		return Result{Status: StatusCancelled}, nil
	}
	return Result{Status: StatusFailed}, err
}

// failCreateLocked records a creation failure and reports whether it was a cancellation.
func (f *Feature) failCreateLocked(err error) bool {
	if errors.Is(err, context.Canceled) {
		_ = f.m.to(StateCancelled)
		return true
	}
	logging.LogEvent("%s session creation failed: %v", f.opts.Capability, err)
	f.errMsg = capability.FailureMessage(f.opts.Capability)
	_ = f.m.to(StateErrored)
	return false
}

func (f *Feature) finish(id uint64, res Result, err error) (Result, error) {
	f.mu.Lock()
	if f.run != id {
		f.mu.Unlock()
		res.Status = StatusCancelled
		return res, nil
	}
	f.runCancel = nil
	switch res.Status {
	case StatusCompleted:
		f.output = res.Text
		f.detections = res.Detections
		_ = f.m.to(StateCompleted)
	case StatusCancelled:
		_ = f.m.to(StateCancelled)
	default:
		if res.Text != "" {
			f.output = res.Text
		}
		f.errMsg = capability.FailureMessage(f.opts.Capability)
		_ = f.m.to(StateErrored)
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
	return res, err
}

// Estimate counts the tokens of input using the live session. Failures are
// returned but leave the feature untouched.
func (f *Feature) Estimate(ctx context.Context, input string) (int, error) {
	f.mu.Lock()
	if f.m.state == StateDisposed {
		f.mu.Unlock()
		return 0, ErrSessionDisposed
	}
	f.mu.Unlock()

	sess := f.manager.Current()
	if sess == nil {
		return 0, ErrNoSession
	}
	n := 0
	if strings.TrimSpace(input) != "" {
		var err error
		n, err = f.runner.Estimate(ctx, sess, input)
		if err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	f.tokens = n
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
	return n, nil
}

// Cancel stops the work in flight. Output streamed so far is kept.
func (f *Feature) Cancel() {
	f.mu.Lock()
	if !f.m.state.Busy() || f.m.state == StateProbing {
		f.mu.Unlock()
		return
	}
	f.abortLocked()
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
}

// Clear cancels the work in flight, disposes the session, and resets the output.
func (f *Feature) Clear() {
	f.mu.Lock()
	if f.m.state == StateDisposed {
		f.mu.Unlock()
		return
	}
	f.abortLocked()
	f.m.settle()
	f.output, f.errMsg, f.detections, f.progress, f.tokens = "", "", nil, 0, 0
	snap := f.snapshotLocked()
	f.mu.Unlock()

	_ = f.manager.Dispose()
	f.notify(snap)
}

// Unmount cancels everything and disposes the session. The feature is unusable afterwards.
func (f *Feature) Unmount() {
	f.mu.Lock()
	if f.m.state == StateDisposed {
		f.mu.Unlock()
		return
	}
	f.abortLocked()
	f.probe++
	_ = f.m.to(StateDisposed)
	snap := f.snapshotLocked()
	f.mu.Unlock()

	_ = f.manager.Close()
	f.notify(snap)
}

// Wait blocks until the invocation in flight has returned.
func (f *Feature) Wait() {
	f.runner.Wait()
}

func (f *Feature) startRunLocked(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	f.run++
	rctx, cancel := context.WithCancel(ctx)
	f.runCancel = cancel
	return f.run, rctx, cancel
}

// abortLocked invalidates the run in flight.
func (f *Feature) abortLocked() {
	if f.runCancel != nil {
		f.runCancel()
		f.runCancel = nil
	}
	f.runner.Cancel()
	f.run++
	switch f.m.state {
	case StateSessionCreating, StateInvoking, StateStreamingPartial:
		_ = f.m.to(StateCancelled)
	case StateSessionReady:
		_ = f.m.to(StateReady)
	}
}

func (f *Feature) progressFunc(id uint64) func(float64) {
	return func(percent float64) {
		f.mu.Lock()
		if f.run != id {
			f.mu.Unlock()
			return
		}
		f.progress = percent
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.notify(snap)
	}
}

func (f *Feature) snapshotLocked() Snapshot {
	f.seq++
	snap := Snapshot{
		Seq:          f.seq,
		Capability:   f.opts.Capability,
		State:        f.m.state,
		Availability: f.avail,
		Config:       f.cfg,
		Output:       f.output,
		Detections:   append([]capability.Detection(nil), f.detections...),
		Err:          f.errMsg,
		Progress:     f.progress,
		Tokens:       f.tokens,
		Mode:         f.mode,
	}
	if sess := f.manager.Current(); sess != nil {
		snap.SessionID = sess.ID
	}
	return snap
}

func (f *Feature) notify(snap Snapshot) {
	if f.opts.Observer != nil {
		f.opts.Observer(snap)
	}
}
