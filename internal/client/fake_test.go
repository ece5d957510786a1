package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

var errDialRefused = errors.New("dial refused")

// fakeConn stands in for a relay connection. Frames pushed to in are read by the
// manager; frames the manager writes are recorded in written. With echo set it
// behaves like a relay that reflects every message back to its sender.
type fakeConn struct {
	in      chan []byte
	written chan []byte
	closed  chan struct{}
	once    sync.Once
	echo    bool
	seq     atomic.Uint64
}

func newFakeConn(echo bool) *fakeConn {
	return &fakeConn{
		in:      make(chan []byte, 32),
		written: make(chan []byte, 32),
		closed:  make(chan struct{}),
		echo:    echo,
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.closed:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.written <- data

	if c.echo {
		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			return nil
		}
		msg, err := proto.ParseMessage(inbound.Data)
		if err != nil {
			return nil
		}
		msg.Seq = c.seq.Add(1)
		c.in <- messageFrame(msg)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// hangUp simulates the relay closing the connection.
func (c *fakeConn) hangUp() {
	close(c.in)
}

type fakeDialer struct {
	conns    chan *fakeConn
	dials    atomic.Int32
	failures atomic.Int32
	echo     bool
}

func newFakeDialer(echo bool) *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 8), echo: echo}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.dials.Add(1)
	if d.failures.Load() > 0 {
		d.failures.Add(-1)
		return nil, errDialRefused
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn := newFakeConn(d.echo)
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()

	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no dial happened")
	}
	return nil
}

func messageFrame(msg proto.Message) []byte {
	data, _ := json.Marshal(proto.Outbound{Type: proto.OutboundTypeMessage, Data: msg})
	return data
}

func newTestManager(t *testing.T, dialer Dialer, policy ReconnectPolicy) (*Manager, <-chan Status) {
	t.Helper()

	mgr := NewManager("ws://relay.test/ws", dialer, policy, nil)
	t.Cleanup(mgr.Close)

	statuses := make(chan Status, 64)
	mgr.OnStatus(func(s Status) { statuses <- s })
	return mgr, statuses
}

func waitStatus(t *testing.T, statuses <-chan Status, want Status) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-statuses:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("status %s not observed", want)
		}
	}
}

func mustWritten(t *testing.T, conn *fakeConn) proto.Message {
	t.Helper()

	select {
	case data := <-conn.written:
		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if inbound.Type != proto.InboundTypeMessage {
			t.Fatalf("unexpected frame type %q", inbound.Type)
		}
		msg, err := proto.ParseMessage(inbound.Data)
		if err != nil {
			t.Fatalf("parse written message: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("nothing written")
	}
	return proto.Message{}
}

func expectNothingWritten(t *testing.T, conn *fakeConn) {
	t.Helper()

	select {
	case data := <-conn.written:
		t.Fatalf("unexpected frame written: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func mustReceive(t *testing.T, ch <-chan proto.Message) proto.Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected message not delivered")
	}
	return proto.Message{}
}

func expectNoDelivery(t *testing.T, ch <-chan proto.Message) {
	t.Helper()

	select {
	case msg := <-ch:
		t.Fatalf("unexpected delivery: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitTimeout() <-chan time.Time {
	return time.After(2 * time.Second)
}
