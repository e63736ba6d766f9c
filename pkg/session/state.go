package session

// State represents the lifecycle phase of a live session.
type State int

const (
	// StateNew is the initial state before the transport is opened.
	StateNew State = iota
	// StateAwaitingSetup means the transport is open and the setup
	// message has not been sent yet.
	StateAwaitingSetup
	// StateAwaitingSetupComplete means setup was sent and the server
	// acknowledgment is pending.
	StateAwaitingSetupComplete
	// StateActive is full-duplex operation. Only this state permits
	// client content, realtime input, and tool responses.
	StateActive
	// StateDraining follows a GoAway: in-flight work finishes, new
	// turns are rejected.
	StateDraining
	// StateClosed is the terminal state of an orderly shutdown.
	StateClosed
	// StateFailed is the terminal state after a protocol violation or
	// transport error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAwaitingSetup:
		return "awaiting_setup"
	case StateAwaitingSetupComplete:
		return "awaiting_setup_complete"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// validTransition reports whether moving from one state to another is
// legal. Any non-terminal state may fail; Closed is reached from
// Active or Draining (orderly) or from handshake states when the
// caller closes early.
func validTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	switch from {
	case StateNew:
		return to == StateAwaitingSetup || to == StateClosed
	case StateAwaitingSetup:
		return to == StateAwaitingSetupComplete || to == StateClosed
	case StateAwaitingSetupComplete:
		return to == StateActive || to == StateClosed
	case StateActive:
		return to == StateDraining || to == StateClosed
	case StateDraining:
		return to == StateClosed
	default:
		return false
	}
}
