package notify

import (
	"context"
	"sync"

	"dardasha/pkg/domain"
)

// MemoryNotifier dispatches events in-process. It backs tests and the
// single-instance dev mode.
//
// Handlers run synchronously inside PublishMessage under a read lock;
// Subscription.Close takes the write lock, so it blocks until in-flight
// deliveries finish and no handler runs after Close returns. Handlers
// must not subscribe or close subscriptions from inside the callback.
type MemoryNotifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]*memorySubscriber
}

type memorySubscriber struct {
	conversationID string
	handler        func(domain.Message)
}

// NewMemoryNotifier initializes an empty in-process notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[int]*memorySubscriber)}
}

// PublishMessage delivers the message to matching subscribers synchronously.
func (n *MemoryNotifier) PublishMessage(_ context.Context, msg domain.Message) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subs {
		if sub.conversationID == "" || sub.conversationID == msg.ConversationID {
			sub.handler(msg)
		}
	}
	return nil
}

// SubscribeMessages registers a handler until the subscription is closed.
func (n *MemoryNotifier) SubscribeMessages(_ context.Context, conversationID string, handler func(domain.Message)) (*Subscription, error) {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = &memorySubscriber{conversationID: conversationID, handler: handler}
	n.mu.Unlock()
	return NewSubscription(func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}), nil
}
