package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis pub/sub channel used when none is configured.
const DefaultRelayChannel = "muster:events"

// RedisRelay is an EventBus that publishes through a Redis pub/sub channel.
// Every process running a relay on the same channel receives each event and
// hands it to its local bus, so API and dispatch workers can run separately.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   EventBus
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRedisRelay connects to redisURL and starts forwarding messages received
// on channel into local. The relay owns local and closes it on Close.
func NewRedisRelay(ctx context.Context, redisURL, channel string, local EventBus, logger *slog.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisRelay(ctx, client, channel, local, logger)
}

func newRedisRelay(
	ctx context.Context, client *redis.Client, channel string, local EventBus, logger *slog.Logger,
) (*RedisRelay, error) {
	if channel == "" {
		channel = DefaultRelayChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no event published after
	// construction is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %q: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.receive(runCtx, pubsub)
	return r, nil
}

func (r *RedisRelay) receive(ctx context.Context, pubsub *redis.PubSub) {
	defer close(r.done)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				r.logger.Warn("eventbus: discarding malformed relay message", "channel", msg.Channel, "error", err)
				continue
			}
			if l, ok := r.local.(*inMemoryBus); ok {
				l.publish(e)
			} else {
				r.local.Publish(e.Type, e.Payload)
			}
		}
	}
}

// Publish sends the event to the Redis channel. If Redis is unreachable the
// event is delivered to the local bus only.
func (r *RedisRelay) Publish(eventType string, payload map[string]string) {
	e := Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: payload}
	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("eventbus: encoding event", "event", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("eventbus: redis publish failed, delivering locally",
			"event", eventType, "channel", r.channel, "error", err)
		r.local.Publish(eventType, payload)
	}
}

// Subscribe registers listener on the local bus.
func (r *RedisRelay) Subscribe(listener Listener) {
	r.local.Subscribe(listener)
}

// Close stops the receive loop, closes the Redis client and drains the local bus.
func (r *RedisRelay) Close() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
		if err := r.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			r.logger.Warn("eventbus: closing redis client", "error", err)
		}
		r.local.Close()
	})
}
