// internal/session/debounce.go
package session

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period used by as-you-type actions.
const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer runs an action once input has stopped changing for a quiet window.
// A new trigger replaces the pending one, so at most one execution is pending.
type Debouncer[T any] struct {
	window time.Duration
	action func(T)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer constructs a Debouncer. A non-positive window uses DefaultDebounceWindow.
func NewDebouncer[T any](window time.Duration, action func(T)) *Debouncer[T] {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer[T]{window: window, action: action}
}

// Trigger schedules the action with value after the quiet window.
func (d *Debouncer[T]) Trigger(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.stopped || d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.action(value)
	})
}

// Pending reports whether an action is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops the pending action without stopping the debouncer.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// Stop cancels the pending action and ignores later triggers.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.Cancel()
}
