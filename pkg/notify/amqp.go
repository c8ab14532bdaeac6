package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"dardasha/pkg/domain"
)

const amqpExchange = "dardasha.messages"

// AMQPNotifier fans out insert events through a RabbitMQ fanout exchange.
// Deployment alternative to the Redis driver for setups that already run
// a broker.
type AMQPNotifier struct {
	conn *amqp.Connection
	pub  *amqp.Channel
}

// NewAMQPNotifier dials the broker and declares the fanout exchange.
func NewAMQPNotifier(url string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := pub.ExchangeDeclare(amqpExchange, "fanout", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, pub: pub}, nil
}

// PublishMessage announces an inserted row to all bound queues.
func (n *AMQPNotifier) PublishMessage(ctx context.Context, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.pub.PublishWithContext(ctx, amqpExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

// SubscribeMessages binds an exclusive auto-delete queue to the exchange
// and consumes it until the subscription is closed.
func (n *AMQPNotifier) SubscribeMessages(ctx context.Context, conversationID string, handler func(domain.Message)) (*Subscription, error) {
	ch, err := n.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", amqpExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				var msg domain.Message
				if err := json.Unmarshal(delivery.Body, &msg); err != nil {
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
		_ = ch.Close()
	}), nil
}

// Close shuts down the broker connection.
func (n *AMQPNotifier) Close() error {
	return n.conn.Close()
}
