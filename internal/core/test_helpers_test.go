package core

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T, policy Policy) (*Hub, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(NewLocalBroker(16), policy, nil)
	go func() { _ = hub.Run(ctx) }()
	t.Cleanup(cancel)

	return hub, cancel
}

func mustRegister(t *testing.T, hub *Hub, id string, buffer int) *Session {
	t.Helper()

	s := NewSession(id, buffer)
	if err := hub.Register(s); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return s
}

func mustPublish(t *testing.T, hub *Hub, origin, text string) {
	t.Helper()

	msg := Message{UserID: origin, Role: "developer", Text: text, TS: "2024-01-01T10:00:00.000Z"}
	if err := hub.Publish(context.Background(), origin, msg); err != nil {
		t.Fatalf("publish %q: %v", text, err)
	}
}

func mustMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("session queue closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected message not received")
	}
	return Message{}
}

func mustClosed(t *testing.T, ch <-chan Message) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("session queue not closed")
		}
	}
}

func expectSilence(t *testing.T, ch <-chan Message) {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
