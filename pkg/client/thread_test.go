package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"dardasha/pkg/domain"
)

var (
	threadAlice = domain.Profile{ID: "u1", Username: "alice"}
	threadBob   = domain.Profile{ID: "u2", Username: "bob"}
)

func openTestThread(t *testing.T, fg *fakeGateway, policy FailurePolicy) *Thread {
	t.Helper()
	fg.partner = threadBob
	th := NewThread(fg, signedInSession(t, fg), "c1", policy, nil)
	if err := th.Open(context.Background()); err != nil {
		t.Fatalf("open thread: %v", err)
	}
	t.Cleanup(th.Close)
	return th
}

func TestThreadLoadNewestFirst(t *testing.T) {
	fg := newFakeGateway(threadAlice)
	base := time.Now().UTC()
	fg.messagesFn = func() ([]domain.Message, error) {
		return []domain.Message{
			{ID: "m3", ConversationID: "c1", UserID: "u2", Content: "newest", CreatedAt: base},
			{ID: "m2", ConversationID: "c1", UserID: "u1", Content: "middle", CreatedAt: base.Add(-time.Minute)},
			{ID: "m1", ConversationID: "c1", UserID: "u2", Content: "oldest", CreatedAt: base.Add(-time.Hour)},
		}, nil
	}
	th := openTestThread(t, fg, KeepFailed)

	entries := th.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "m3" || entries[2].ID != "m1" {
		t.Fatalf("expected newest first, got %s..%s", entries[0].ID, entries[2].ID)
	}
	if entries[0].Sender.ID != threadBob.ID || entries[1].Sender.ID != threadAlice.ID {
		t.Fatalf("sender resolution mismatch")
	}
	if th.Partner().ID != threadBob.ID {
		t.Fatalf("expected bob as partner")
	}
	if th.State() != SyncReady {
		t.Fatalf("expected ready state, got %s", th.State())
	}
}

func TestThreadSendOptimisticReplacement(t *testing.T) {
	fg := newFakeGateway(threadAlice)
	gate := make(chan struct{})
	fg.sendFn = func(conversationID, content string) (domain.Message, error) {
		<-gate
		return domain.Message{
			ID:             "server-1",
			ConversationID: conversationID,
			UserID:         threadAlice.ID,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		}, nil
	}
	th := openTestThread(t, fg, KeepFailed)

	sendDone := make(chan error, 1)
	go func() { sendDone <- th.Send(context.Background(), "hello") }()

	// The optimistic entry shows up before the server responds.
	waitFor(t, func() bool { return len(th.Entries()) == 1 })
	pending := th.Entries()[0]
	if pending.Status != DeliveryPending || pending.Content != "hello" {
		t.Fatalf("expected pending optimistic entry, got %+v", pending)
	}
	localID := pending.ID

	close(gate)
	if err := <-sendDone; err != nil {
		t.Fatalf("send: %v", err)
	}

	entries := th.Entries()
	if len(entries) != 1 {
		t.Fatalf("confirmation must replace in place, got %d entries", len(entries))
	}
	if entries[0].ID != "server-1" || entries[0].ID == localID {
		t.Fatalf("entry should carry the server row, got %+v", entries[0])
	}
	if entries[0].Status != DeliveryConfirmed {
		t.Fatalf("expected confirmed entry")
	}

	// The realtime echo of our own send must not duplicate the entry.
	_ = fg.notifier.PublishMessage(context.Background(), domain.Message{
		ID: "server-1", ConversationID: "c1", UserID: threadAlice.ID, Content: "hello",
	})
	if got := len(th.Entries()); got != 1 {
		t.Fatalf("own-send echo duplicated the entry: %d", got)
	}
}

func TestThreadFailurePolicies(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy FailurePolicy
		want   int
		status DeliveryStatus
	}{
		{"keep", KeepFailed, 1, DeliveryPending},
		{"mark", MarkFailed, 1, DeliveryFailed},
		{"remove", RemoveFailed, 0, DeliveryConfirmed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fg := newFakeGateway(threadAlice)
			fg.sendFn = func(string, string) (domain.Message, error) {
				return domain.Message{}, errors.New("insert failed")
			}
			th := openTestThread(t, fg, tc.policy)

			if err := th.Send(context.Background(), "doomed"); err == nil {
				t.Fatalf("expected send error")
			}
			entries := th.Entries()
			if len(entries) != tc.want {
				t.Fatalf("expected %d entries, got %d", tc.want, len(entries))
			}
			if tc.want > 0 && entries[0].Status != tc.status {
				t.Fatalf("expected status %v, got %v", tc.status, entries[0].Status)
			}
		})
	}
}

func TestThreadReceive(t *testing.T) {
	fg := newFakeGateway(threadAlice)
	th := openTestThread(t, fg, KeepFailed)
	ctx := context.Background()

	// Partner message lands at the top with the partner's profile.
	_ = fg.notifier.PublishMessage(ctx, domain.Message{
		ID: "in-1", ConversationID: "c1", UserID: threadBob.ID, Content: "hey",
	})
	entries := th.Entries()
	if len(entries) != 1 || entries[0].ID != "in-1" {
		t.Fatalf("expected incoming entry, got %v", entries)
	}
	if entries[0].Sender.ID != threadBob.ID {
		t.Fatalf("incoming entry should resolve the partner profile")
	}

	// Events for other conversations never reach this thread.
	_ = fg.notifier.PublishMessage(ctx, domain.Message{
		ID: "other-1", ConversationID: "c2", UserID: threadBob.ID, Content: "elsewhere",
	})
	if got := len(th.Entries()); got != 1 {
		t.Fatalf("cross-conversation event leaked in: %d entries", got)
	}

	// The user's own inserts are dropped on the receive path.
	_ = fg.notifier.PublishMessage(ctx, domain.Message{
		ID: "own-1", ConversationID: "c1", UserID: threadAlice.ID, Content: "mine",
	})
	if got := len(th.Entries()); got != 1 {
		t.Fatalf("own insert leaked in: %d entries", got)
	}
}

func TestThreadCloseStopsEverything(t *testing.T) {
	fg := newFakeGateway(threadAlice)
	th := openTestThread(t, fg, KeepFailed)
	th.Close()

	_ = fg.notifier.PublishMessage(context.Background(), domain.Message{
		ID: "late-1", ConversationID: "c1", UserID: threadBob.ID, Content: "too late",
	})
	if got := len(th.Entries()); got != 0 {
		t.Fatalf("delivery after close must be a no-op, got %d entries", got)
	}

	if err := th.Send(context.Background(), "nope"); !errors.Is(err, ErrThreadClosed) {
		t.Fatalf("expected ErrThreadClosed, got %v", err)
	}
	if err := th.Load(context.Background()); !errors.Is(err, ErrThreadClosed) {
		t.Fatalf("expected ErrThreadClosed from load, got %v", err)
	}
	th.Close() // idempotent
}

func TestThreadLoadFencing(t *testing.T) {
	fg := newFakeGateway(threadAlice)
	fg.partner = threadBob
	th := NewThread(fg, signedInSession(t, fg), "c1", KeepFailed, nil)
	if err := th.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(th.Close)

	started := make(chan struct{})
	release := make(chan struct{})
	var call int
	fg.messagesFn = func() ([]domain.Message, error) {
		fg.mu.Lock()
		call++
		n := call
		fg.mu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return []domain.Message{{ID: "stale", ConversationID: "c1", UserID: "u2"}}, nil
		}
		return []domain.Message{{ID: "fresh", ConversationID: "c1", UserID: "u2"}}, nil
	}

	firstDone := make(chan struct{})
	go func() {
		_ = th.Load(context.Background())
		close(firstDone)
	}()
	<-started

	// A second load supersedes the in-flight one.
	if err := th.Load(context.Background()); err != nil {
		t.Fatalf("second load: %v", err)
	}
	close(release)
	<-firstDone

	entries := th.Entries()
	if len(entries) != 1 || entries[0].ID != "fresh" {
		t.Fatalf("stale load must not overwrite the newer result, got %v", entries)
	}
	if th.State() != SyncReady {
		t.Fatalf("expected ready state, got %s", th.State())
	}
}

func TestThreadLoadError(t *testing.T) {
	fg := newFakeGateway(threadAlice)
	fg.messagesFn = func() ([]domain.Message, error) {
		return []domain.Message{{ID: "m1", ConversationID: "c1", UserID: "u2"}}, nil
	}
	th := openTestThread(t, fg, KeepFailed)
	if len(th.Entries()) != 1 {
		t.Fatalf("expected initial entry")
	}

	fg.messagesFn = func() ([]domain.Message, error) {
		return nil, errors.New("fetch failed")
	}
	if err := th.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if th.State() != SyncError || th.Err() == nil {
		t.Fatalf("expected error state")
	}
	// The last good entries stay in place.
	if len(th.Entries()) != 1 {
		t.Fatalf("error must retain the last good entries")
	}
}
