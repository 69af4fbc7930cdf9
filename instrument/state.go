package instrument

// State represents the lifecycle state of an instrument
type State int

const (
	// StateDisconnected indicates no hardware connection exists
	StateDisconnected State = iota
	// StateConnecting indicates connection establishment is in progress
	StateConnecting
	// StateReady indicates the instrument is connected and idle
	StateReady
	// StateAcquiring indicates the instrument is streaming measurements
	StateAcquiring
	// StateError indicates a fault; Status.Recoverable says whether a
	// Recover command is accepted
	StateError
	// StateShuttingDown indicates shutdown is in progress
	StateShuttingDown
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateAcquiring:
		return "acquiring"
	case StateError:
		return "error"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Status is the externally visible lifecycle snapshot of an instrument.
// Fault and Recoverable are only meaningful in StateError.
type Status struct {
	State       State  `json:"state"`
	Fault       string `json:"fault,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
}
