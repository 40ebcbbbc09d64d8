package redis

import (
	"context"
	"fmt"

	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster publishes events on a Redis channel so every instance sees them
type Broadcaster struct {
	client  *redis.Client
	channel string
}

// NewBroadcaster creates a publisher for channel
func NewBroadcaster(client *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{client: client, channel: channel}
}

// Publish encodes event and sends it to the channel
func (b *Broadcaster) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.Encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Relay forwards events from a Redis channel to the local bus
type Relay struct {
	client  *redis.Client
	channel string
	bus     *events.Bus
	log     *zap.Logger
}

// NewRelay creates a relay from channel into bus
func NewRelay(client *redis.Client, channel string, bus *events.Bus, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{client: client, channel: channel, bus: bus, log: log}
}

// Run blocks until ctx is done. Undecodable messages are logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reporting readiness
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.log.Info("event relay subscribed", zap.String("channel", r.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				r.log.Warn("dropping undecodable event", zap.Error(err))
				continue
			}
			_ = r.bus.Publish(ctx, event)
		}
	}
}
