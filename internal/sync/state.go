// Package sync contains the inbox and thread synchronization engines.
// Both engines treat the server as the source of truth: every refresh
// wholesale-replaces local state, and the only locally-originated entries
// are pending optimistic sends awaiting confirmation.
package sync

import (
	"fmt"
	"sync"
)

// ViewState is the lifecycle phase of a synced view.
type ViewState string

const (
	StateIdle    ViewState = "idle"
	StateLoading ViewState = "loading"
	StateLoaded  ViewState = "loaded"
	StateFailed  ViewState = "failed"
)

// validTransitions maps each state to the states reachable from it.
// A loaded view never drops back to loading: background refresh failures
// keep showing the last good data instead of blanking the screen.
var validTransitions = map[ViewState][]ViewState{
	StateIdle:    {StateLoading},
	StateLoading: {StateLoaded, StateFailed},
	StateFailed:  {StateLoading},
	StateLoaded:  {},
}

// StateMachine tracks a view's lifecycle with validated transitions.
type StateMachine struct {
	mu      sync.Mutex
	current ViewState
}

// NewStateMachine creates a machine in the idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// Current returns the present state.
func (m *StateMachine) Current() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// To moves the machine to the given state. Self-transitions are no-ops;
// anything else not listed in validTransitions is rejected.
func (m *StateMachine) To(next ViewState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == next {
		return nil
	}
	for _, allowed := range validTransitions[m.current] {
		if allowed == next {
			m.current = next
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", m.current, next)
}
