package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dardasha/pkg/domain"
)

const defaultRedisChannel = "dardasha:messages:inserted"

// RedisNotifier fans out insert events over a Redis pub/sub channel, so
// every service instance sees inserts performed by the others.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to Redis and verifies connectivity.
func NewRedisNotifier(addr, password string) (*RedisNotifier, error) {
	addr = strings.TrimSpace(addr)
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisNotifier{client: client, channel: defaultRedisChannel}, nil
}

// PublishMessage announces an inserted row to all subscribers.
func (n *RedisNotifier) PublishMessage(ctx context.Context, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// SubscribeMessages consumes the channel until the subscription is closed.
// Filtering by conversation happens subscriber-side: the channel carries
// every insert.
func (n *RedisNotifier) SubscribeMessages(ctx context.Context, conversationID string, handler func(domain.Message)) (*Subscription, error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	// Force the subscription handshake so a broken connection surfaces here.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case raw, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var msg domain.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					slog.Warn("notify: dropping malformed event", "err", err)
					continue
				}
				if conversationID != "" && msg.ConversationID != conversationID {
					continue
				}
				select {
				case <-done:
					return
				default:
				}
				handler(msg)
			}
		}
	}()
	return NewSubscription(func() {
		close(done)
		_ = pubsub.Close()
	}), nil
}
