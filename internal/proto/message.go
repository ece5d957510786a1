package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeMessage = "message"

	OutboundTypeConnected = "connected"
	OutboundTypeMessage   = "message"
	OutboundTypeError     = "error"
)

// Error codes carried in error envelopes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeUnknownType    = "unknown_type"
)

// ConnectedStatus is the greeting text sent to every new session.
const ConnectedStatus = "Connected to server"

// TimeLayout renders timestamps the way browsers do with toISOString.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidMessage is returned when a message payload lacks a required field.
var ErrInvalidMessage = errors.New("invalid message format. Required fields: userId, role, text")

// Message is the unit of conversation on the wire. The relay never changes its shape;
// Seq is stamped by the relay and omitted by senders.
type Message struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Text   string `json:"text"`
	TS     string `json:"ts"`
	Seq    uint64 `json:"seq,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Received is the client-side view of an Outbound envelope with the payload left undecoded.
type Received struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// ConnectedData greets a session right after the upgrade.
type ConnectedData struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Msg
}

// ParseMessage decodes a message payload and checks that userId, role and text are present.
// A missing ts is allowed; the relay fills it.
func ParseMessage(data json.RawMessage) (Message, error) {
	var raw struct {
		UserID *string `json:"userId"`
		Role   *string `json:"role"`
		Text   *string `json:"text"`
		TS     string  `json:"ts"`
		Seq    uint64  `json:"seq"`
	}
	if len(data) == 0 {
		return Message{}, ErrInvalidMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if raw.UserID == nil || raw.Role == nil || raw.Text == nil {
		return Message{}, ErrInvalidMessage
	}
	return Message{
		UserID: *raw.UserID,
		Role:   *raw.Role,
		Text:   *raw.Text,
		TS:     raw.TS,
		Seq:    raw.Seq,
	}, nil
}

// EncodeMessage wraps a message into an inbound envelope ready to be written.
func EncodeMessage(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return json.Marshal(Inbound{Type: InboundTypeMessage, Data: payload})
}

// Timestamp formats t in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTimestamp accepts the layout produced by Timestamp as well as plain RFC 3339.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	return t, nil
}
