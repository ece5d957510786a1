package client

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// Draft is an outgoing message before it is stamped with ts.
type Draft struct {
	UserID string
	Role   string
	Text   string
}

// Channel is the typed send/receive surface over a Manager.
type Channel struct {
	mgr *Manager
	log *zerolog.Logger
	now func() time.Time
}

// NewChannel builds a channel on top of mgr.
func NewChannel(mgr *Manager, logger *zerolog.Logger) *Channel {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Channel{mgr: mgr, log: logger, now: time.Now}
}

// Send stamps the draft with the current time and transmits it, fire and forget.
// Whitespace-only text or a manager that is not connected make it a silent no-op.
// The message is not appended locally; it comes back through the relay.
func (c *Channel) Send(ctx context.Context, d Draft) {
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return
	}
	if c.mgr.Status() != StatusConnected {
		return
	}

	msg := proto.Message{
		UserID: d.UserID,
		Role:   d.Role,
		Text:   text,
		TS:     proto.Timestamp(c.now()),
	}
	data, err := proto.EncodeMessage(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("encode message")
		return
	}
	if err := c.mgr.Send(ctx, data); err != nil {
		c.log.Debug().Err(err).Msg("message dropped")
	}
}

// OnMessage registers a handler invoked once per inbound message in transport order.
// The handler stays registered across reconnects until the subscription is cancelled.
func (c *Channel) OnMessage(fn func(proto.Message)) *Subscription {
	return c.mgr.Subscribe(func(ev Event) {
		if ev.Kind == EventMessage {
			fn(ev.Message)
		}
	})
}
