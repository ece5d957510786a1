package core

// Session is one connected participant as seen by the relay.
// Its queue is owned by the hub: only the hub sends to it and only the hub closes it.
type Session struct {
	ID     string
	events chan Message
}

// NewSession constructs a session with a bounded outbound queue.
func NewSession(id string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:     id,
		events: make(chan Message, buffer),
	}
}

// Events yields relayed messages in relay order. It is closed when the session is
// unregistered, evicted, or the hub stops.
func (s *Session) Events() <-chan Message {
	return s.events
}
