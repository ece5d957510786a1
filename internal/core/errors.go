package core

import "errors"

var (
	// ErrHubClosed is returned when the hub loop is no longer running.
	ErrHubClosed = errors.New("hub closed")
	// ErrBrokerClosed is returned when the broker stops delivering envelopes.
	ErrBrokerClosed = errors.New("broker closed")
)
