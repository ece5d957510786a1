package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/metrics"
)

// Hub is the broadcast relay. A single goroutine owns the session set; register,
// unregister and delivery are serialized through it, so every session observes
// relayed messages in the same order and no delivery targets a closed queue.
type Hub struct {
	broker Broker
	policy Policy
	log    *zerolog.Logger

	register   chan *Session
	unregister chan *Session
	done       chan struct{}
	stopped    atomic.Bool

	// owned by the Run goroutine
	sessions map[string]*Session
	seq      uint64

	count atomic.Int64
}

// NewHub creates a new relay hub on top of the given broker.
func NewHub(broker Broker, policy Policy, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		broker:     broker,
		policy:     policy,
		log:        logger,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		done:       make(chan struct{}),
		sessions:   make(map[string]*Session),
	}
}

// Run processes membership changes and broker envelopes until ctx is cancelled.
// On exit every remaining session queue is closed.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()

	envelopes, err := h.broker.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe broker: %w", err)
	}

	h.log.Info().Str("policy", h.policy.String()).Msg("relay hub started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-h.register:
			h.add(s)
		case s := <-h.unregister:
			h.remove(s, "unregistered")
		case env, ok := <-envelopes:
			if !ok {
				return ErrBrokerClosed
			}
			h.deliver(env)
		}
	}
}

// Register adds a session to the fan-out set. A joining session receives no backlog.
func (h *Hub) Register(s *Session) error {
	select {
	case h.register <- s:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes a session. It is safe to call for sessions already evicted.
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Publish submits a message for fan-out on behalf of the origin session.
func (h *Hub) Publish(ctx context.Context, origin string, msg Message) error {
	if h.stopped.Load() {
		return ErrHubClosed
	}
	msg.Seq = 0
	if err := h.broker.Publish(ctx, Envelope{Origin: origin, Message: msg}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// SessionCount reports the number of sessions in the fan-out set.
func (h *Hub) SessionCount() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) add(s *Session) {
	if prev, ok := h.sessions[s.ID]; ok && prev != s {
		h.remove(prev, "replaced")
	}
	h.sessions[s.ID] = s
	h.count.Store(int64(len(h.sessions)))
	metrics.SessionsConnected.Set(float64(len(h.sessions)))
	h.log.Debug().Str("session_id", s.ID).Int("sessions", len(h.sessions)).Msg("session registered")
}

func (h *Hub) remove(s *Session, reason string) {
	cur, ok := h.sessions[s.ID]
	if !ok || cur != s {
		return
	}
	delete(h.sessions, s.ID)
	close(s.events)
	h.count.Store(int64(len(h.sessions)))
	metrics.SessionsConnected.Set(float64(len(h.sessions)))
	h.log.Debug().Str("session_id", s.ID).Str("reason", reason).Int("sessions", len(h.sessions)).Msg("session removed")
}

func (h *Hub) deliver(env Envelope) {
	h.seq++
	msg := env.Message
	msg.Seq = h.seq
	metrics.MessagesRelayed.Inc()

	var slow []*Session
	for id, s := range h.sessions {
		if !h.policy.includes(env.Origin, id) {
			continue
		}
		select {
		case s.events <- msg:
			metrics.Deliveries.Inc()
		default:
			slow = append(slow, s)
		}
	}

	// A session that cannot take the message is evicted; survivors never see a gap.
	for _, s := range slow {
		metrics.SessionsEvicted.Inc()
		h.log.Warn().Str("session_id", s.ID).Uint64("seq", msg.Seq).Msg("session queue full, evicting")
		h.remove(s, "slow consumer")
	}

	h.log.Debug().Str("user_id", msg.UserID).Uint64("seq", msg.Seq).Msg("message relayed")
}

func (h *Hub) stop() {
	h.stopped.Store(true)
	for _, s := range h.sessions {
		h.remove(s, "hub stopped")
	}
	close(h.done)
	h.log.Info().Msg("relay hub stopped")
}
