package voice

import (
	"errors"
	"fmt"
	"sync"
)

// LinkState is the lifecycle of one voice link.
type LinkState int

const (
	LinkIdle LinkState = iota
	LinkNegotiating
	LinkConnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return fmt.Sprintf("LinkState(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a link is asked to move to a state
// it cannot reach from where it is.
var ErrInvalidTransition = errors.New("invalid link state transition")

// transitions lists the legal successors of each state. Closed is terminal.
var transitions = map[LinkState][]LinkState{
	LinkIdle:        {LinkNegotiating, LinkClosed},
	LinkNegotiating: {LinkConnected, LinkFailed, LinkClosed},
	LinkConnected:   {LinkClosed},
	LinkFailed:      {LinkClosed},
}

// CanTransition reports whether from → to is legal.
func CanTransition(from, to LinkState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// linkMachine records the state of one link. pion callbacks and the owner
// race on it, so every access holds mu.
type linkMachine struct {
	mu    sync.Mutex
	state LinkState
}

func (m *linkMachine) current() LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to next if legal from the current state.
func (m *linkMachine) transition(next LinkState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	m.state = next
	return nil
}

// close moves to Closed and reports whether this call did it.
func (m *linkMachine) close() bool {
	return m.transition(LinkClosed) == nil
}
