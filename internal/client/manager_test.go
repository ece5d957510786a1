package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func TestManagerStartsDisconnected(t *testing.T) {
	mgr, _ := newTestManager(t, newFakeDialer(false), ReconnectPolicy{})

	if mgr.Status() != StatusDisconnected {
		t.Fatalf("expected Disconnected, got %s", mgr.Status())
	}
	if err := mgr.Send(context.Background(), []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestManagerConnectTransitions(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{})

	mgr.Connect(context.Background())

	if s := <-statuses; s != StatusConnecting {
		t.Fatalf("expected Connecting first, got %s", s)
	}
	waitStatus(t, statuses, StatusConnected)
	dialer.next(t)

	if mgr.Status() != StatusConnected {
		t.Fatalf("expected Connected, got %s", mgr.Status())
	}
}

func TestManagerConnectIsIdempotent(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{})

	got := make(chan proto.Message, 8)
	mgr.Subscribe(func(ev Event) {
		if ev.Kind == EventMessage {
			got <- ev.Message
		}
	})

	mgr.Connect(context.Background())
	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	mgr.Connect(context.Background())

	conn := dialer.next(t)
	conn.in <- messageFrame(proto.Message{UserID: "u1", Role: "user", Text: "once", TS: "2024-01-01T10:00:00.000Z"})

	mustReceive(t, got)
	expectNoDelivery(t, got)

	if n := dialer.dials.Load(); n != 1 {
		t.Fatalf("expected exactly one dial, got %d", n)
	}
}

func TestManagerRemoteCloseGoesDisconnected(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{Enabled: false})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	conn := dialer.next(t)

	conn.hangUp()
	waitStatus(t, statuses, StatusDisconnected)

	if err := mgr.Send(context.Background(), []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after loss, got %v", err)
	}

	// Connect works again once the previous attempt has finished.
	waitIdle(t, mgr)
	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	if n := dialer.dials.Load(); n != 2 {
		t.Fatalf("expected a second dial, got %d", n)
	}
}

func TestManagerDialFailureWithoutReconnect(t *testing.T) {
	dialer := newFakeDialer(false)
	dialer.failures.Store(1)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{Enabled: false})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnecting)
	waitStatus(t, statuses, StatusDisconnected)

	if mgr.Status() != StatusDisconnected {
		t.Fatalf("expected Disconnected, got %s", mgr.Status())
	}
}

func TestManagerDisconnectStopsDelivery(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{Enabled: true, MinBackoff: 10 * time.Millisecond})

	got := make(chan proto.Message, 8)
	mgr.Subscribe(func(ev Event) {
		if ev.Kind == EventMessage {
			got <- ev.Message
		}
	})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	conn := dialer.next(t)

	conn.in <- messageFrame(proto.Message{UserID: "u1", Role: "user", Text: "before", TS: "t1"})
	if msg := mustReceive(t, got); msg.Text != "before" {
		t.Fatalf("unexpected message %+v", msg)
	}

	mgr.Disconnect()
	waitStatus(t, statuses, StatusDisconnected)

	conn.in <- messageFrame(proto.Message{UserID: "u1", Role: "user", Text: "after", TS: "t2"})
	expectNoDelivery(t, got)

	// Disconnect disables reconnection.
	time.Sleep(50 * time.Millisecond)
	if n := dialer.dials.Load(); n != 1 {
		t.Fatalf("expected no reconnect after Disconnect, got %d dials", n)
	}

	// Handlers survive a manual reconnect.
	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	next := dialer.next(t)
	next.in <- messageFrame(proto.Message{UserID: "u2", Role: "user", Text: "again", TS: "t3"})
	if msg := mustReceive(t, got); msg.Text != "again" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestManagerDisconnectFromAnyState(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, _ := newTestManager(t, dialer, ReconnectPolicy{})

	mgr.Disconnect()
	if mgr.Status() != StatusDisconnected {
		t.Fatalf("expected Disconnected, got %s", mgr.Status())
	}

	mgr.Connect(context.Background())
	mgr.Disconnect()
	if mgr.Status() != StatusDisconnected {
		t.Fatalf("expected Disconnected after teardown while connecting, got %s", mgr.Status())
	}
}

func TestManagerReconnectsWithBackoff(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{
		Enabled:    true,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	first := dialer.next(t)

	dialer.failures.Store(2)
	first.hangUp()

	waitStatus(t, statuses, StatusDisconnected)
	waitStatus(t, statuses, StatusConnected)
	dialer.next(t)

	if n := dialer.dials.Load(); n != 4 {
		t.Fatalf("expected 4 dials (1 ok, 2 refused, 1 ok), got %d", n)
	}
}

func TestManagerDropsMalformedFrames(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{})

	got := make(chan proto.Message, 8)
	errs := make(chan *proto.Error, 8)
	mgr.Subscribe(func(ev Event) {
		switch ev.Kind {
		case EventMessage:
			got <- ev.Message
		case EventError:
			errs <- ev.Err
		}
	})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	conn := dialer.next(t)

	conn.in <- []byte(`not json`)
	conn.in <- []byte(`{"type":"message","data":{"userId":"u1","text":"no role"}}`)
	conn.in <- []byte(`{"type":"presence","data":{}}`)
	conn.in <- []byte(`{"type":"error","error":{"code":"invalid_message","msg":"nope"}}`)
	conn.in <- []byte(`{"type":"connected","data":{"status":"Connected to server","session":"s-1"}}`)
	conn.in <- messageFrame(proto.Message{UserID: "u1", Role: "user", Text: "valid", TS: "t"})

	if msg := mustReceive(t, got); msg.Text != "valid" {
		t.Fatalf("unexpected message %+v", msg)
	}
	expectNoDelivery(t, got)

	select {
	case e := <-errs:
		if e.Code != proto.ErrCodeInvalidMessage {
			t.Fatalf("unexpected error event %+v", e)
		}
	default:
		t.Fatal("error frame should surface as an event")
	}

	if mgr.SessionID() != "s-1" {
		t.Fatalf("expected session id from greeting, got %q", mgr.SessionID())
	}
	if mgr.Status() != StatusConnected {
		t.Fatalf("malformed frames must not drop the connection, status %s", mgr.Status())
	}
}

func TestSubscriptionCancelInsideHandler(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{})

	calls := make(chan string, 8)
	var sub *Subscription
	sub = mgr.Subscribe(func(ev Event) {
		if ev.Kind == EventMessage {
			calls <- ev.Message.Text
			sub.Cancel()
			sub.Cancel()
		}
	})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	conn := dialer.next(t)

	conn.in <- messageFrame(proto.Message{UserID: "u1", Role: "user", Text: "first", TS: "t"})
	conn.in <- messageFrame(proto.Message{UserID: "u1", Role: "user", Text: "second", TS: "t"})

	select {
	case text := <-calls:
		if text != "first" {
			t.Fatalf("unexpected first call %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
	select {
	case text := <-calls:
		t.Fatalf("cancelled handler invoked again with %q", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReconnectPolicyBackoff(t *testing.T) {
	p := ReconnectPolicy{MinBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}.normalize()

	steps := []time.Duration{200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	cur := p.MinBackoff
	for i, want := range steps {
		cur = p.next(cur)
		if cur != want {
			t.Fatalf("step %d: got %v, want %v", i, cur, want)
		}
	}

	def := ReconnectPolicy{}.normalize()
	if def.MinBackoff != defaultMinBackoff || def.MaxBackoff != defaultMaxBackoff {
		t.Fatalf("unexpected defaults %+v", def)
	}
}

func waitIdle(t *testing.T, mgr *Manager) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mgr.mu.Lock()
		idle := mgr.cancel == nil
		mgr.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("manager did not settle")
}

func TestManagerCloseDeliversFinalStatus(t *testing.T) {
	dialer := newFakeDialer(false)
	mgr, statuses := newTestManager(t, dialer, ReconnectPolicy{Enabled: true, MinBackoff: 10 * time.Millisecond})

	mgr.Connect(context.Background())
	waitStatus(t, statuses, StatusConnected)
	dialer.next(t)

	mgr.Close()
	waitStatus(t, statuses, StatusDisconnected)

	mgr.Connect(context.Background())
	time.Sleep(50 * time.Millisecond)
	if n := dialer.dials.Load(); n != 1 {
		t.Fatalf("closed manager must not dial again, got %d dials", n)
	}
	if mgr.Status() != StatusDisconnected {
		t.Fatalf("expected Disconnected after Close, got %s", mgr.Status())
	}
}
