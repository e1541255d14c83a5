package monitoring

// ConnectionState is the state of the event feed connection.
type ConnectionState int32

const (
	// StateDisconnected means no transport is live.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a dial is in flight or the initial snapshot has
	// not arrived yet.
	StateConnecting
	// StateConnected means the initial snapshot was applied and incremental
	// frames are flowing.
	StateConnected
)

// String returns the string representation of the ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionStateNames lists the label of every ConnectionState.
func ConnectionStateNames() []string {
	return []string{StateDisconnected.String(), StateConnecting.String(), StateConnected.String()}
}

// StreamController is the pause/resume toggle and state view of the event
// feed connection.
type StreamController interface {
	State() ConnectionState
	Active() bool
	Pause()
	Resume()
	OnStateChange(fn func(ConnectionState))
}
