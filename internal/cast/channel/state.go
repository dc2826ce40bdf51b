package channel

import "fmt"

// State is the lifecycle state of a Channel (spec §3).
type State int

const (
	// StateClosed is the initial state and the state after Close or an
	// unrecoverable transport failure.
	StateClosed State = iota
	// StateConnecting covers the TLS dial, auth handshake, and transport
	// CONNECT round trip.
	StateConnecting
	// StateOpen is the steady state: exactly one reader goroutine and one
	// heartbeat goroutine are alive.
	StateOpen
	// StateClosing is entered while Close is tearing the channel down.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var validTransitions = map[State][]State{
	StateClosed:     {StateConnecting},
	StateConnecting: {StateOpen, StateClosed},
	StateOpen:       {StateClosing, StateClosed},
	StateClosing:    {StateClosed},
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
