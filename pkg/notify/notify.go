// Package notify fans out row-insert events to subscribers. It is the
// push half of the data gateway: the service publishes every stored
// message, clients subscribe per conversation or table-wide.
package notify

import (
	"context"
	"sync"

	"dardasha/pkg/domain"
)

// Notifier publishes and subscribes to message-insert events.
type Notifier interface {
	// PublishMessage announces a freshly inserted message row.
	PublishMessage(ctx context.Context, msg domain.Message) error
	// SubscribeMessages delivers inserted rows to handler. A non-empty
	// conversationID restricts delivery to that conversation. Events
	// arriving after Close must not reach the handler.
	SubscribeMessages(ctx context.Context, conversationID string, handler func(domain.Message)) (*Subscription, error)
}

// Subscription is a handle for tearing down a message subscription.
// Close is idempotent.
type Subscription struct {
	once    sync.Once
	closeFn func()
}

// NewSubscription wraps a teardown function. Used by Notifier implementations.
func NewSubscription(closeFn func()) *Subscription {
	return &Subscription{closeFn: closeFn}
}

// Close stops deliveries.
func (s *Subscription) Close() {
	if s == nil || s.closeFn == nil {
		return
	}
	s.once.Do(s.closeFn)
}
