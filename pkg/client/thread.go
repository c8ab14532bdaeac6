package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"dardasha/pkg/domain"
	"dardasha/pkg/gateway"
	"dardasha/pkg/notify"
)

// ErrThreadClosed is returned when sending on a closed thread.
var ErrThreadClosed = errors.New("thread is closed")

// DeliveryStatus tracks an entry's journey from optimistic append to
// server confirmation.
type DeliveryStatus int

const (
	DeliveryConfirmed DeliveryStatus = iota
	DeliveryPending
	DeliveryFailed
)

// FailurePolicy decides what happens to an optimistic entry whose send
// failed.
type FailurePolicy int

const (
	// KeepFailed leaves the entry in place unchanged.
	KeepFailed FailurePolicy = iota
	// MarkFailed keeps the entry and flags it DeliveryFailed.
	MarkFailed
	// RemoveFailed drops the entry from the thread.
	RemoveFailed
)

// Entry is a message row plus its client-side delivery status and the
// resolved sender profile.
type Entry struct {
	domain.Message
	Status DeliveryStatus
	Sender domain.Profile
}

// Thread synchronizes a single conversation's messages. Entries are
// held newest first. Sends append optimistically and the pending entry
// is replaced in place once the server confirms; incoming events from
// the thread's own sends are dropped on the receive path so nothing is
// ever duplicated.
type Thread struct {
	gw             gateway.Gateway
	session        *Session
	conversationID string
	policy         FailurePolicy
	onChange       func()

	mu      sync.Mutex
	entries []Entry
	partner domain.Profile
	state   SyncState
	lastErr error
	seq     uint64
	sub     *notify.Subscription
	closed  bool
}

// NewThread builds a synchronizer for one conversation. onChange fires
// after every state transition and may be nil.
func NewThread(gw gateway.Gateway, session *Session, conversationID string, policy FailurePolicy, onChange func()) *Thread {
	return &Thread{
		gw:             gw,
		session:        session,
		conversationID: conversationID,
		policy:         policy,
		onChange:       onChange,
	}
}

// Open resolves the partner header, subscribes to this conversation's
// inserts, and loads the history.
func (t *Thread) Open(ctx context.Context) error {
	partner, err := t.gw.ConversationPartner(ctx, t.session.Token(), t.conversationID)
	if err != nil {
		return err
	}
	sub, err := t.gw.SubscribeMessages(ctx, t.session.Token(), t.conversationID, t.receive)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		sub.Close()
		return ErrThreadClosed
	}
	t.partner = partner
	t.sub = sub
	t.mu.Unlock()
	return t.Load(ctx)
}

// Load refetches the message history, newest first. Overlapping loads
// resolve last-request-wins.
func (t *Thread) Load(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrThreadClosed
	}
	t.seq++
	seq := t.seq
	t.state = SyncLoading
	t.mu.Unlock()
	t.notifyChange()

	messages, err := t.gw.ConversationMessages(ctx, t.session.Token(), t.conversationID)

	t.mu.Lock()
	if t.closed || seq != t.seq {
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		t.state = SyncError
		t.lastErr = err
		t.mu.Unlock()
		t.notifyChange()
		return err
	}
	entries := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, Entry{Message: msg, Sender: t.senderLocked(msg.UserID)})
	}
	t.entries = entries
	t.state = SyncReady
	t.lastErr = nil
	t.mu.Unlock()
	t.notifyChange()
	return nil
}

// Send appends the message optimistically, then issues the mutation.
// On confirmation the pending entry is swapped for the server row; on
// failure the configured policy applies.
func (t *Thread) Send(ctx context.Context, content string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrThreadClosed
	}
	localID := uuid.NewString()
	pending := Entry{
		Message: domain.Message{
			ID:             localID,
			ConversationID: t.conversationID,
			UserID:         t.session.UserID(),
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		},
		Status: DeliveryPending,
		Sender: t.session.Profile(),
	}
	t.entries = append([]Entry{pending}, t.entries...)
	t.mu.Unlock()
	t.notifyChange()

	confirmed, err := t.gw.SendMessage(ctx, t.session.Token(), t.conversationID, content)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return err
	}
	idx := t.indexOfLocked(localID)
	if err != nil {
		if idx >= 0 {
			switch t.policy {
			case MarkFailed:
				t.entries[idx].Status = DeliveryFailed
			case RemoveFailed:
				t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
			}
		}
		t.mu.Unlock()
		t.notifyChange()
		return err
	}
	if idx >= 0 {
		t.entries[idx] = Entry{Message: confirmed, Sender: t.session.Profile()}
	}
	t.mu.Unlock()
	t.notifyChange()
	return nil
}

// receive handles an insert event from the subscription. Events for
// other conversations and the user's own sends are dropped; the rest
// prepend with the partner's profile resolved.
func (t *Thread) receive(msg domain.Message) {
	t.mu.Lock()
	if t.closed || msg.ConversationID != t.conversationID || msg.UserID == t.session.UserID() {
		t.mu.Unlock()
		return
	}
	t.entries = append([]Entry{{Message: msg, Sender: t.senderLocked(msg.UserID)}}, t.entries...)
	t.mu.Unlock()
	t.notifyChange()
}

// Entries returns the thread's entries, newest first.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Thread) Partner() domain.Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partner
}

func (t *Thread) State() SyncState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Close unsubscribes and makes every later delivery a no-op.
func (t *Thread) Close() {
	t.mu.Lock()
	t.closed = true
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()
	sub.Close()
}

func (t *Thread) senderLocked(userID string) domain.Profile {
	if userID == t.session.UserID() {
		return t.session.Profile()
	}
	return t.partner
}

func (t *Thread) indexOfLocked(id string) int {
	for i, e := range t.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *Thread) notifyChange() {
	if t.onChange != nil {
		t.onChange()
	}
}
