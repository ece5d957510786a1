package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

const subscriberBuffer = 64

// Broker fans envelopes out through one Redis pub/sub channel, so every relay
// instance subscribed to it observes the same order.
type Broker struct {
	client  *goredis.Client
	channel string
	log     *zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, redisURL, channel string, logger *zerolog.Logger) (*Broker, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Broker{client: client, channel: channel, log: logger}, nil
}

// Publish encodes the envelope as JSON and publishes it on the shared channel.
func (b *Broker) Publish(ctx context.Context, env core.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe starts consuming the shared channel. The returned stream closes when
// ctx is cancelled or the subscription fails.
func (b *Broker) Subscribe(ctx context.Context) (<-chan core.Envelope, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan core.Envelope, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-messages:
				if !ok {
					return
				}
				var env core.Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn().Err(err).Str("channel", m.Channel).Msg("drop malformed envelope")
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the Redis client.
func (b *Broker) Close() error {
	return b.client.Close()
}
