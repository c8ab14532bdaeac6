package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dardasha/pkg/domain"
	"dardasha/pkg/gateway"
	"dardasha/pkg/notify"
)

// fakeGateway satisfies gateway.Gateway with canned responses; the
// per-method hooks let tests control timing and failures.
type fakeGateway struct {
	mu       sync.Mutex
	notifier *notify.MemoryNotifier

	profile       domain.Profile
	partner       domain.Profile
	searchResults []domain.Profile

	signUpCalls int
	searchCalls int
	signedOut   []string
	signOutErr  error

	conversationsFn func() ([]domain.ConversationSummary, error)
	messagesFn      func() ([]domain.Message, error)
	sendFn          func(conversationID, content string) (domain.Message, error)
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func newFakeGateway(profile domain.Profile) *fakeGateway {
	return &fakeGateway{notifier: notify.NewMemoryNotifier(), profile: profile}
}

func (f *fakeGateway) SignUp(context.Context, gateway.SignUpParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	return nil
}

func (f *fakeGateway) SignIn(_ context.Context, _, _ string) (gateway.Credentials, error) {
	return gateway.Credentials{Token: "tok-" + f.profile.ID, Profile: f.profile}, nil
}

func (f *fakeGateway) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, token)
	return f.signOutErr
}

func (f *fakeGateway) FetchProfile(context.Context, string) (domain.Profile, error) {
	return f.profile, nil
}

func (f *fakeGateway) UpdateProfile(_ context.Context, _ string, update gateway.ProfileUpdate) (domain.Profile, error) {
	p := f.profile
	if update.Status != "" {
		p.Status = update.Status
	}
	return p, nil
}

func (f *fakeGateway) UploadAvatar(context.Context, string, string, []byte) (domain.Profile, error) {
	p := f.profile
	p.AvatarURL = "https://cdn.example.com/" + p.ID + ".png"
	return p, nil
}

func (f *fakeGateway) SearchProfiles(context.Context, string, string) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.searchResults, nil
}

func (f *fakeGateway) UserConversations(context.Context, string) ([]domain.ConversationSummary, error) {
	if f.conversationsFn != nil {
		return f.conversationsFn()
	}
	return nil, nil
}

func (f *fakeGateway) CreatePrivateConversation(_ context.Context, _, otherUserID string) (string, error) {
	return "conv-" + otherUserID, nil
}

func (f *fakeGateway) ConversationPartner(context.Context, string, string) (domain.Profile, error) {
	return f.partner, nil
}

func (f *fakeGateway) ConversationMessages(context.Context, string, string) ([]domain.Message, error) {
	if f.messagesFn != nil {
		return f.messagesFn()
	}
	return nil, nil
}

func (f *fakeGateway) SendMessage(_ context.Context, _, conversationID, content string) (domain.Message, error) {
	if f.sendFn != nil {
		return f.sendFn(conversationID, content)
	}
	return domain.Message{
		ID:             "server-msg",
		ConversationID: conversationID,
		UserID:         f.profile.ID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (f *fakeGateway) SubscribeMessages(ctx context.Context, _ string, conversationID string, handler func(domain.Message)) (*notify.Subscription, error) {
	return f.notifier.SubscribeMessages(ctx, conversationID, handler)
}

func signedInSession(t *testing.T, fg *fakeGateway) *Session {
	t.Helper()
	sess, err := NewSession(fg, NewMemoryStateStore())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := sess.SignIn(context.Background(), fg.profile.ID+"@example.com", "password1"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return sess
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestSessionPersistsAcrossRestarts(t *testing.T) {
	alice := domain.Profile{ID: "u1", Username: "alice"}
	fg := newFakeGateway(alice)
	state := NewMemoryStateStore()

	sess, err := NewSession(fg, state)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if sess.SignedIn() {
		t.Fatalf("fresh session should be signed out")
	}
	if _, err := sess.SignIn(context.Background(), "alice@example.com", "password1"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := sess.SetTheme(domain.ThemeDark); err != nil {
		t.Fatalf("set theme: %v", err)
	}

	// A new Session over the same state lands signed-in with the theme intact.
	restored, err := NewSession(fg, state)
	if err != nil {
		t.Fatalf("restore session: %v", err)
	}
	if !restored.SignedIn() || restored.UserID() != "u1" {
		t.Fatalf("restored session should be signed in as u1")
	}
	if restored.Theme() != domain.ThemeDark {
		t.Fatalf("theme should persist, got %s", restored.Theme())
	}
}

func TestSessionSignUpDoesNotSignIn(t *testing.T) {
	fg := newFakeGateway(domain.Profile{ID: "u1", Username: "alice"})
	sess, err := NewSession(fg, NewMemoryStateStore())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	err = sess.SignUp(context.Background(), gateway.SignUpParams{
		Email: "alice@example.com", Password: "password1", FullName: "Alice", Username: "alice",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if sess.SignedIn() {
		t.Fatalf("sign-up must not establish a session")
	}
	if fg.signUpCalls != 1 {
		t.Fatalf("expected one sign-up call, got %d", fg.signUpCalls)
	}
}

func TestSessionSignOut(t *testing.T) {
	fg := newFakeGateway(domain.Profile{ID: "u1", Username: "alice"})
	state := NewMemoryStateStore()
	sess, err := NewSession(fg, state)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := sess.SignIn(context.Background(), "alice@example.com", "password1"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := sess.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if sess.SignedIn() {
		t.Fatalf("session should be cleared")
	}
	if persisted, _ := state.Load(); persisted.Token != "" {
		t.Fatalf("persisted token should be cleared")
	}
	// Signing out again is a no-op and does not hit the server.
	if err := sess.SignOut(context.Background()); err != nil {
		t.Fatalf("repeat sign out: %v", err)
	}
	if len(fg.signedOut) != 1 {
		t.Fatalf("expected one server sign-out, got %d", len(fg.signedOut))
	}
}

func TestSessionSignOutWithRejectedToken(t *testing.T) {
	fg := newFakeGateway(domain.Profile{ID: "u1", Username: "alice"})
	fg.signOutErr = gateway.ErrAuthorization
	sess := signedInSession(t, fg)
	// A token the server no longer recognizes still clears locally.
	if err := sess.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if sess.SignedIn() {
		t.Fatalf("session should be cleared despite server rejection")
	}
}

func TestContactsEmptyQuery(t *testing.T) {
	fg := newFakeGateway(domain.Profile{ID: "u1", Username: "alice"})
	contacts := NewContacts(fg, signedInSession(t, fg))

	for _, q := range []string{"", "   ", "\t"} {
		if _, err := contacts.Search(context.Background(), q); !errors.Is(err, ErrEmptyQuery) {
			t.Fatalf("query %q: expected ErrEmptyQuery, got %v", q, err)
		}
	}
	if fg.searchCalls != 0 {
		t.Fatalf("blank queries must not hit the server")
	}

	fg.searchResults = []domain.Profile{{ID: "u2", Username: "bob"}}
	results, err := contacts.Search(context.Background(), " bob ")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Username != "bob" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestContactsStartChat(t *testing.T) {
	fg := newFakeGateway(domain.Profile{ID: "u1", Username: "alice"})
	contacts := NewContacts(fg, signedInSession(t, fg))

	first, err := contacts.StartChat(context.Background(), "u2")
	if err != nil {
		t.Fatalf("start chat: %v", err)
	}
	second, err := contacts.StartChat(context.Background(), "u2")
	if err != nil {
		t.Fatalf("start chat again: %v", err)
	}
	if first != second || first == "" {
		t.Fatalf("expected stable conversation id, got %q and %q", first, second)
	}
}

func TestFileStateStore(t *testing.T) {
	path := t.TempDir() + "/state.json"
	store := NewFileStateStore(path)

	// Missing file yields the zero state.
	state, err := store.Load()
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if state.Token != "" {
		t.Fatalf("expected zero state")
	}

	want := State{Token: "tok", Profile: domain.Profile{ID: "u1"}, Theme: domain.ThemeDark}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Token != want.Token || got.Profile.ID != "u1" || got.Theme != domain.ThemeDark {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear absent: %v", err)
	}
}
