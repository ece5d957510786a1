package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// ErrNotConnected is returned by Manager.Send when no channel is established.
var ErrNotConnected = errors.New("not connected")

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// ReconnectPolicy controls automatic reconnection after transport loss.
// Backoff doubles from MinBackoff up to MaxBackoff and resets after a successful handshake.
type ReconnectPolicy struct {
	Enabled    bool
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (p ReconnectPolicy) normalize() ReconnectPolicy {
	if p.MinBackoff <= 0 {
		p.MinBackoff = defaultMinBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = p.MinBackoff
	}
	return p
}

func (p ReconnectPolicy) next(cur time.Duration) time.Duration {
	next := cur * 2
	if next > p.MaxBackoff {
		next = p.MaxBackoff
	}
	return next
}

// Manager owns exactly one logical transport channel per session and publishes
// status transitions and inbound messages on a single ordered event feed.
type Manager struct {
	url    string
	dialer Dialer
	policy ReconnectPolicy
	log    *zerolog.Logger
	feed   *feed

	mu      sync.Mutex
	status  Status
	conn    Conn
	cancel  context.CancelFunc
	gen     uint64
	session string
	closed  bool
}

// NewManager creates a disconnected manager. Call Close to release it.
func NewManager(url string, dialer Dialer, policy ReconnectPolicy, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		url:    url,
		dialer: dialer,
		policy: policy.normalize(),
		log:    logger,
		feed:   newFeed(),
		status: StatusDisconnected,
	}
}

// Connect starts the channel. It is a no-op while connecting, connected, or
// waiting to reconnect. Failures surface only as status changes.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.gen++
	m.setStatusLocked(StatusConnecting)

	go m.supervise(runCtx, m.gen)
}

// Disconnect closes the channel and stops reconnection. No message events are
// delivered after it returns, whatever state it was called from.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, conn := m.cancel, m.conn
	m.cancel = nil
	m.conn = nil
	m.gen++
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Close disconnects and stops the event feed. Subscribers still receive the final
// Disconnected transition.
func (m *Manager) Close() {
	m.Disconnect()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.feed.close()
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SessionID returns the id the relay assigned in its greeting, if any.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Subscribe registers a handler for every event. Handlers run on the feed goroutine,
// one event at a time, in order.
func (m *Manager) Subscribe(fn func(Event)) *Subscription {
	return m.feed.subscribe(func(ev Event) {
		if ev.Kind != EventStatus && !m.current(ev.gen) {
			return
		}
		fn(ev)
	})
}

// OnStatus registers a handler for status transitions only.
func (m *Manager) OnStatus(fn func(Status)) *Subscription {
	return m.Subscribe(func(ev Event) {
		if ev.Kind == EventStatus {
			fn(ev.Status)
		}
	})
}

// Send writes one frame if connected. Delivery is at most once.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (m *Manager) supervise(ctx context.Context, gen uint64) {
	defer m.finish(gen)

	backoff := m.policy.MinBackoff
	for {
		conn, err := m.dialer.Dial(ctx, m.url)
		if err == nil {
			if !m.attach(gen, conn) {
				_ = conn.Close()
				return
			}
			backoff = m.policy.MinBackoff
			err = m.readLoop(ctx, gen, conn)
			m.detach(gen, conn)
		} else {
			m.setStatus(gen, StatusDisconnected)
		}

		if ctx.Err() != nil {
			return
		}
		m.log.Warn().Err(err).Msg("connection lost")
		if !m.policy.Enabled {
			return
		}

		m.log.Info().Dur("backoff", backoff).Msg("reconnecting")
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = m.policy.next(backoff)

		if !m.setStatus(gen, StatusConnecting) {
			return
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, gen uint64, conn Conn) error {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		m.handleFrame(gen, data)
	}
}

// handleFrame decodes one relay frame. Malformed frames are dropped and logged.
func (m *Manager) handleFrame(gen uint64, data []byte) {
	var received proto.Received
	if err := json.Unmarshal(data, &received); err != nil {
		m.log.Warn().Err(err).Msg("drop malformed frame")
		return
	}

	switch received.Type {
	case proto.OutboundTypeMessage:
		msg, err := proto.ParseMessage(received.Data)
		if err != nil {
			m.log.Warn().Err(err).Msg("drop malformed message")
			return
		}
		m.emit(gen, Event{Kind: EventMessage, Message: msg})
	case proto.OutboundTypeError:
		if received.Error == nil {
			m.log.Warn().Msg("drop error frame without payload")
			return
		}
		m.log.Debug().Str("code", received.Error.Code).Str("msg", received.Error.Msg).Msg("relay error")
		m.emit(gen, Event{Kind: EventError, Err: received.Error})
	case proto.OutboundTypeConnected:
		var greeting proto.ConnectedData
		if err := json.Unmarshal(received.Data, &greeting); err != nil {
			m.log.Warn().Err(err).Msg("drop malformed greeting")
			return
		}
		m.mu.Lock()
		if m.gen == gen {
			m.session = greeting.Session
		}
		m.mu.Unlock()
		m.log.Debug().Str("session_id", greeting.Session).Msg(greeting.Status)
	default:
		m.log.Debug().Str("type", received.Type).Msg("ignore unknown frame")
	}
}

func (m *Manager) attach(gen uint64, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return false
	}
	m.conn = conn
	m.setStatusLocked(StatusConnected)
	return true
}

func (m *Manager) detach(gen uint64, conn Conn) {
	_ = conn.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen || m.conn != conn {
		return
	}
	m.conn = nil
	m.session = ""
	m.setStatusLocked(StatusDisconnected)
}

func (m *Manager) finish(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.conn = nil
	m.setStatusLocked(StatusDisconnected)
}

func (m *Manager) emit(gen uint64, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return
	}
	ev.gen = gen
	m.feed.push(ev)
}

func (m *Manager) setStatus(gen uint64, s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return false
	}
	m.setStatusLocked(s)
	return true
}

func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	m.log.Debug().Str("status", s.String()).Msg("connection status")
	m.feed.push(Event{Kind: EventStatus, Status: s, gen: m.gen})
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}
