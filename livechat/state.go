package livechat

// ConnectionState represents the current state of the realtime connection.
type ConnectionState int

const (
	// StateDisconnected means the client has no live socket.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateConnected means the socket is open and authenticated.
	StateConnected

	// StateError means the last dial failed.
	StateError
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Disconnect reasons reported in StateEvent.Reason.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
)

// StateEvent represents a state change event.
type StateEvent struct {
	OldState ConnectionState
	NewState ConnectionState

	// Reason is set on transitions to StateDisconnected.
	Reason string

	// Attempt is the reconnect attempt that produced this transition, 0 for
	// the initial connection.
	Attempt int

	// Error is the cause of a StateError transition, or ErrReconnectExhausted
	// on the terminal event.
	Error error

	// Terminal is true once automatic reconnection has given up. The client
	// stays down until Initialize is called again.
	Terminal bool
}

func (StateEvent) eventName() string { return "state" }
