// internal/session/manager.go
package session

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/providers"
)

// Session is a live capability session owned by one feature.
type Session struct {
	ID         string
	Capability capability.Name
	Config     capability.Config
	Target     providers.Target

	handle   providers.Session
	disposed atomic.Bool
}

// Handle returns the provider session, or ErrSessionDisposed once disposed.
func (s *Session) Handle() (providers.Session, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	if s.disposed.Load() {
		return nil, ErrSessionDisposed
	}
	return s.handle, nil
}

// Disposed reports whether Dispose has been called.
func (s *Session) Disposed() bool {
	return s == nil || s.disposed.Load()
}

// Dispose releases the session. It is safe on nil and disposed sessions.
func (s *Session) Dispose() error {
	if s == nil || !s.disposed.CompareAndSwap(false, true) {
		return nil
	}
	logging.LogSession(string(s.Capability), s.ID, "disposed")
	return s.handle.Destroy()
}

// Manager creates and disposes sessions for one capability. It holds at most one
// live session at a time.
type Manager struct {
	provider providers.Provider
	bind     Binder
	name     capability.Name

	mu     sync.Mutex
	live   *Session
	closed bool
}

// NewManager constructs a Manager for a capability.
func NewManager(provider providers.Provider, bind Binder, name capability.Name) *Manager {
	return &Manager{provider: provider, bind: bind, name: name}
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live.Disposed() {
		return nil
	}
	return m.live
}

// Acquire returns the live session when its config equals cfg, and otherwise
// replaces it with a new one. The boolean reports whether the session was reused.
func (m *Manager) Acquire(ctx context.Context, cfg capability.Config, onProgress func(percent float64)) (*Session, bool, error) {
	if live := m.Current(); live != nil && live.Config.Equal(cfg) {
		return live, true, nil
	}
	sess, err := m.Create(ctx, cfg, onProgress)
	return sess, false, err
}

// Create disposes any live session and creates a new one. Download progress is
// forwarded to onProgress as a percentage clamped to [0,100] that never decreases.
func (m *Manager) Create(ctx context.Context, cfg capability.Config, onProgress func(percent float64)) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionDisposed
	}
	previous := m.live
	m.live = nil
	m.mu.Unlock()
	_ = previous.Dispose()

	target, ok := m.bind(m.name)
	if !ok {
		return nil, &CreationError{Capability: m.name, Err: ErrCapabilityUnavailable}
	}

	id := uuid.NewString()
	logging.LogSession(string(m.name), id, "creating on %s", describeTarget(target))
	tracker := &progressTracker{report: onProgress}
	req := providers.Request{Capability: m.name, Target: target, Config: cfg}
	handle, err := m.provider.Create(ctx, req, tracker.observe)
	if err != nil {
		logging.LogSession(string(m.name), id, "create failed: %v", err)
		return nil, &CreationError{Capability: m.name, Err: err}
	}

	sess := &Session{ID: id, Capability: m.name, Config: cfg, Target: target, handle: handle}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = sess.Dispose()
		return nil, ErrSessionDisposed
	}
	stale := m.live
	m.live = sess
	m.mu.Unlock()
	_ = stale.Dispose()

	logging.LogSession(string(m.name), id, "ready")
	return sess, nil
}

// Dispose releases the live session, if any.
func (m *Manager) Dispose() error {
	m.mu.Lock()
	live := m.live
	m.live = nil
	m.mu.Unlock()
	return live.Dispose()
}

// Close disposes the live session and refuses further creation.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Dispose()
}

// progressTracker normalizes the fractions reported by a provider during one
// acquisition. Values that would move the bar backwards are dropped.
type progressTracker struct {
	mu      sync.Mutex
	last    float64
	started bool
	report  func(percent float64)
}

func (t *progressTracker) observe(fraction float64) {
	if t.report == nil || math.IsNaN(fraction) {
		return
	}
	percent := math.Max(0, math.Min(100, fraction*100))

	t.mu.Lock()
	if t.started && percent <= t.last {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.last = percent
	t.mu.Unlock()

	t.report(percent)
}
