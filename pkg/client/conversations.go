package client

import (
	"context"
	"sync"

	"dardasha/pkg/domain"
	"dardasha/pkg/gateway"
	"dardasha/pkg/notify"
)

// SyncState tracks where a synchronizer is in its fetch cycle.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncLoading
	SyncReady
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncLoading:
		return "loading"
	case SyncReady:
		return "ready"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// ConversationList keeps the signed-in user's conversation summaries in
// sync. Refresh is coarse: any message insert anywhere triggers a full
// refetch, and callers refresh again on focus or pull-to-refresh.
// Overlapping refreshes resolve last-request-wins: each fetch carries a
// sequence number and stale completions are discarded.
type ConversationList struct {
	gw       gateway.Gateway
	session  *Session
	onChange func()

	mu        sync.Mutex
	state     SyncState
	summaries []domain.ConversationSummary
	lastErr   error
	seq       uint64
	sub       *notify.Subscription
	closed    bool
}

// NewConversationList builds the synchronizer. onChange fires after
// every state transition and may be nil.
func NewConversationList(gw gateway.Gateway, session *Session, onChange func()) *ConversationList {
	return &ConversationList{gw: gw, session: session, onChange: onChange}
}

// Start subscribes to message inserts and runs the initial refresh.
func (l *ConversationList) Start(ctx context.Context) error {
	sub, err := l.gw.SubscribeMessages(ctx, l.session.Token(), "", func(domain.Message) {
		l.Refresh(ctx)
	})
	if err != nil {
		return err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		sub.Close()
		return nil
	}
	l.sub = sub
	l.mu.Unlock()
	return l.Refresh(ctx)
}

// Refresh refetches the summaries. A newer refresh started while this
// one was in flight wins; the stale result is dropped.
func (l *ConversationList) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.seq++
	seq := l.seq
	l.state = SyncLoading
	l.mu.Unlock()
	l.notifyChange()

	summaries, err := l.gw.UserConversations(ctx, l.session.Token())

	l.mu.Lock()
	if l.closed || seq != l.seq {
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		// Keep the last good list on screen; only the state flips.
		l.state = SyncError
		l.lastErr = err
	} else {
		l.state = SyncReady
		l.summaries = summaries
		l.lastErr = nil
	}
	l.mu.Unlock()
	l.notifyChange()
	return err
}

// Summaries returns the current list, newest activity first.
func (l *ConversationList) Summaries() []domain.ConversationSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ConversationSummary, len(l.summaries))
	copy(out, l.summaries)
	return out
}

func (l *ConversationList) State() SyncState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *ConversationList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Close tears down the subscription. Events delivered afterwards are
// ignored.
func (l *ConversationList) Close() {
	l.mu.Lock()
	l.closed = true
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	sub.Close()
}

func (l *ConversationList) notifyChange() {
	if l.onChange != nil {
		l.onChange()
	}
}
