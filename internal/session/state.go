// internal/session/state.go
package session

import "fmt"

// State is a step of the feature lifecycle.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateUnavailable
	StateReady
	StateSessionCreating
	StateSessionReady
	StateInvoking
	StateStreamingPartial
	StateCompleted
	StateCancelled
	StateErrored
	StateDisposed
)

var stateNames = [...]string{
	"idle", "probing", "unavailable", "ready", "sessionCreating", "sessionReady",
	"invoking", "streamingPartial", "completed", "cancelled", "errored", "disposed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Busy reports whether work is in flight.
func (s State) Busy() bool {
	switch s {
	case StateProbing, StateSessionCreating, StateSessionReady, StateInvoking, StateStreamingPartial:
		return true
	}
	return false
}

// transitions lists the allowed moves. Any state may move to StateDisposed.
var transitions = map[State][]State{
	StateIdle:             {StateProbing},
	StateProbing:          {StateProbing, StateReady, StateUnavailable},
	StateUnavailable:      {StateProbing},
	StateReady:            {StateProbing, StateSessionCreating, StateSessionReady},
	StateSessionCreating:  {StateSessionReady, StateCancelled, StateErrored},
	StateSessionReady:     {StateInvoking, StateReady},
	StateInvoking:         {StateStreamingPartial, StateCompleted, StateCancelled, StateErrored},
	StateStreamingPartial: {StateStreamingPartial, StateCompleted, StateCancelled, StateErrored},
	StateCompleted:        {StateReady},
	StateCancelled:        {StateReady},
	StateErrored:          {StateReady},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to State) bool {
	if from == StateDisposed {
		return false
	}
	if to == StateDisposed {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the current state and rejects invalid moves.
type machine struct {
	state State
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	m.state = next
	return nil
}

// settle moves a finished run back to ready.
func (m *machine) settle() {
	switch m.state {
	case StateCompleted, StateCancelled, StateErrored, StateSessionReady:
		m.state = StateReady
	}
}
