package core

import (
	"context"
	"sync"
)

// Envelope carries a message through the broker together with the session it came from.
type Envelope struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}

// Broker serializes published envelopes into a single ordered stream.
// Every hub subscribed to the same broker observes the same order.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context) (<-chan Envelope, error)
	Close() error
}

// LocalBroker is an in-process broker backed by one buffered channel.
type LocalBroker struct {
	ch     chan Envelope
	done   chan struct{}
	closed sync.Once
}

// NewLocalBroker creates an in-process broker.
func NewLocalBroker(buffer int) *LocalBroker {
	if buffer < 0 {
		buffer = 0
	}
	return &LocalBroker{
		ch:   make(chan Envelope, buffer),
		done: make(chan struct{}),
	}
}

// Publish enqueues an envelope, blocking while the buffer is full.
func (b *LocalBroker) Publish(ctx context.Context, env Envelope) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.ch <- env:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns the ordered stream. A local broker has a single consumer.
func (b *LocalBroker) Subscribe(_ context.Context) (<-chan Envelope, error) {
	return b.ch, nil
}

// Close stops accepting envelopes. The stream channel is left open so that a
// concurrent Publish can never panic; consumers stop on their own context.
func (b *LocalBroker) Close() error {
	b.closed.Do(func() { close(b.done) })
	return nil
}
