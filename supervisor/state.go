package supervisor

import (
	"fmt"
	"sync"
)

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateStarting: {StateRunning, StateStopping},
	StateRunning:  {StateStopping},
	StateStopping: {StateStopped},
}

type InvalidTransitionError struct {
	From, To State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid launcher transition %s -> %s", e.From, e.To)
}

// StateMachine tracks the launcher lifecycle. It only moves forward.
type StateMachine struct {
	mu       sync.Mutex
	state    State
	observer func(from, to State)
}

func NewStateMachine(observer func(from, to State)) *StateMachine {
	return &StateMachine{state: StateStarting, observer: observer}
}

func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *StateMachine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	allowed := false
	for _, next := range transitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	m.state = to
	m.mu.Unlock()

	if m.observer != nil {
		m.observer(from, to)
	}
	return nil
}
