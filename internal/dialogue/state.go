package dialogue

import (
	"fmt"
	"sync"
)

type State string

const (
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateGenerating  State = "generating"
	StateSpeaking    State = "speaking"
	StateInterrupted State = "interrupted"
	StateClosed      State = "closed"
)

// transitions lists the legal successor states. Closed is reachable from
// anywhere and terminal.
var transitions = map[State][]State{
	StateIdle:        {StateListening},
	StateListening:   {StateGenerating},
	StateGenerating:  {StateSpeaking, StateInterrupted, StateListening},
	StateSpeaking:    {StateListening, StateInterrupted},
	StateInterrupted: {StateListening},
	StateClosed:      {},
}

// Machine is the per-session turn state. All mutation funnels through To,
// which rejects transitions outside the table instead of tolerating them.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) To(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return fmt.Errorf("session closed: cannot transition to %s", next)
	}
	if next == StateClosed {
		m.state = StateClosed
		return nil
	}
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.state, next)
}

func (m *Machine) Is(states ...State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		if m.state == s {
			return true
		}
	}
	return false
}
