package client

// Status is the connection state observed by dependents of a Manager.
type Status int

const (
	// StatusDisconnected is the initial state and the state after any closure or error.
	StatusDisconnected Status = iota
	// StatusConnecting means a dial is in flight.
	StatusConnecting
	// StatusConnected means the handshake succeeded and sends are transmitted.
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}
