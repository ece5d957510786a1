package client

import "github.com/vovakirdan/wirechat-relay/internal/proto"

// EventKind tells subscribers what an Event carries.
type EventKind int

const (
	// EventStatus reports a connection state transition.
	EventStatus EventKind = iota
	// EventMessage delivers an inbound message in transport order.
	EventMessage
	// EventError carries a diagnostic sent by the relay. It is never fatal.
	EventError
)

// Event is one item of a Manager's ordered event stream.
type Event struct {
	Kind    EventKind
	Status  Status
	Message proto.Message
	Err     *proto.Error

	gen uint64
}
