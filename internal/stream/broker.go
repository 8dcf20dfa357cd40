package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel carrying sale events.
const Channel = "reparto:sales"

// subscriberBuffer bounds the per-subscriber queue. A subscriber that
// cannot keep up loses events rather than blocking the fan-out loop; SSE
// clients recover from the next snapshot.
const subscriberBuffer = 16

// Broker publishes and subscribes to sale events over Redis.
type Broker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBroker constructs a Broker.
func NewBroker(client *redis.Client, logger *slog.Logger) *Broker {
	return &Broker{client: client, logger: logger}
}

// Publish emits an event to every subscriber.
func (b *Broker) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("stream: marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("stream: publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded events plus a cancel function.
// The channel closes when the context ends or cancel is called.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("stream: subscribe: %w", err)
	}

	events := make(chan Event, subscriberBuffer)
	done := make(chan struct{})

	go func() {
		defer close(events)
		src := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("stream: drop malformed event", slog.Any("error", err))
					continue
				}
				select {
				case events <- evt:
				default:
					b.logger.Warn("stream: subscriber lagging, event dropped",
						slog.String("type", string(evt.Type)), slog.Int64("sale_id", evt.Sale.ID))
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return events, cancel, nil
}
