package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"dardasha/internal/util"
	"dardasha/pkg/auth"
	"dardasha/pkg/domain"
	"dardasha/pkg/notify"
	"dardasha/pkg/storage"
	"dardasha/pkg/store"
)

// Page size for contact search, matching the client's fixed list height.
const contactPageSize = 10

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// avatarExtensions maps accepted upload content types to stored extensions.
var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Config holds dependencies for the core application.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Notifier notify.Notifier
	Avatars  storage.ObjectStore // optional; nil disables avatar upload
}

// App wires storage, sessions, change notification, and object storage
// into the messaging operations exposed over HTTP.
type App struct {
	store    store.Store
	sessions store.SessionStore
	notifier notify.Notifier
	avatars  storage.ObjectStore
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &App{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		notifier: cfg.Notifier,
		avatars:  cfg.Avatars,
	}, nil
}

// SignUp registers an account and its profile. It deliberately does NOT
// issue a session: the client signs in explicitly afterwards.
func (a *App) SignUp(email, password, fullName, username string) (domain.Profile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(strings.ToLower(username))
	fullName = strings.TrimSpace(fullName)
	if email == "" || password == "" {
		return domain.Profile{}, ErrEmailAndPasswordRequired
	}
	if fullName == "" {
		return domain.Profile{}, ErrFullNameRequired
	}
	if !usernamePattern.MatchString(username) {
		return domain.Profile{}, ErrInvalidUsername
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.Profile{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.Profile{}, ErrEmailAlreadyExists
	}
	if _, taken, err := a.store.GetProfileByUsername(username); err != nil {
		return domain.Profile{}, fmt.Errorf("check username: %w", err)
	} else if taken {
		return domain.Profile{}, ErrUsernameTaken
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Profile{}, err
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.Profile{}, fmt.Errorf("save user: %w", err)
	}
	profile := domain.Profile{
		ID:        user.ID,
		Username:  username,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.Profile, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.Profile{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.Profile{}, "", ErrInvalidCredentials
	}
	profile, err := a.FetchProfile(user.ID)
	if err != nil {
		return domain.Profile{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.Profile{}, "", fmt.Errorf("issue session: %w", err)
	}
	return profile, token, nil
}

// Logout invalidates the session token. Idempotent.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves the authenticated identity.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// FetchProfile re-reads the profile row for a user.
func (a *App) FetchProfile(userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrUserNotFound
	}
	return profile, nil
}

// UpdateProfile upserts the caller's username, full name, and status text.
func (a *App) UpdateProfile(userID, username, fullName, status string) (domain.Profile, error) {
	profile, err := a.FetchProfile(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	username = strings.TrimSpace(strings.ToLower(username))
	if username != "" && username != profile.Username {
		if !usernamePattern.MatchString(username) {
			return domain.Profile{}, ErrInvalidUsername
		}
		if existing, taken, err := a.store.GetProfileByUsername(username); err != nil {
			return domain.Profile{}, fmt.Errorf("check username: %w", err)
		} else if taken && existing.ID != userID {
			return domain.Profile{}, ErrUsernameTaken
		}
		profile.Username = username
	}
	if fullName = strings.TrimSpace(fullName); fullName != "" {
		profile.FullName = fullName
	}
	profile.Status = strings.TrimSpace(status)
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// SaveAvatar stores the blob under "{user_id}.{ext}" (overwriting any
// previous avatar), resolves the public URL, and records it on the profile.
func (a *App) SaveAvatar(ctx context.Context, userID, contentType string, r io.Reader, size int64) (domain.Profile, error) {
	if a.avatars == nil {
		return domain.Profile{}, ErrAvatarStorageDisabled
	}
	ext, ok := avatarExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return domain.Profile{}, ErrUnsupportedAvatarType
	}
	profile, err := a.FetchProfile(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	key := fmt.Sprintf("%s.%s", userID, ext)
	if err := a.avatars.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Profile{}, fmt.Errorf("store avatar: %w", err)
	}
	profile.AvatarURL = a.avatars.PublicURL(key)
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// SearchProfiles matches other users by username or email. An empty
// query is rejected rather than listing the whole table.
func (a *App) SearchProfiles(userID, query string) ([]domain.Profile, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrSearchQueryRequired
	}
	results, err := a.store.SearchProfiles(query, userID, contactPageSize)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	return results, nil
}

// UserConversations returns the caller's conversation summaries, most
// recently active first.
func (a *App) UserConversations(userID string) ([]domain.ConversationSummary, error) {
	items, err := a.store.ListUserConversations(userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// StartConversation resolves or lazily creates the private conversation
// between the caller and another user. Idempotent per pair.
func (a *App) StartConversation(userID, otherUserID string) (string, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" || otherUserID == userID {
		return "", ErrCannotChatWithSelf
	}
	if _, ok, err := a.store.GetUserByID(otherUserID); err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	} else if !ok {
		return "", ErrUserNotFound
	}
	conversation, err := a.store.GetOrCreateConversation(domain.Conversation{
		ID:        util.NewID(),
		UserAID:   userID,
		UserBID:   otherUserID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("get or create conversation: %w", err)
	}
	return conversation.ID, nil
}

// ConversationPartner returns the other participant's profile snippet.
func (a *App) ConversationPartner(userID, conversationID string) (domain.Profile, error) {
	conversation, err := a.authorizedConversation(userID, conversationID)
	if err != nil {
		return domain.Profile{}, err
	}
	return a.FetchProfile(conversation.PartnerID(userID))
}

// ConversationMessages returns the thread's rows newest-first.
func (a *App) ConversationMessages(userID, conversationID string, limit int) ([]domain.Message, error) {
	if _, err := a.authorizedConversation(userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := a.store.ListConversationMessages(conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// SendMessage inserts a message row and announces it to subscribers.
// Publish failures do not fail the send; the row is already durable and
// list refreshes will pick it up.
func (a *App) SendMessage(ctx context.Context, userID, conversationID, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, ErrMessageEmpty
	}
	if _, err := a.authorizedConversation(userID, conversationID); err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		UserID:         userID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	if err := a.notifier.PublishMessage(ctx, msg); err != nil {
		slog.Warn("publish message event failed", "conversation_id", conversationID, "err", err)
	}
	return msg, nil
}

// SubscribeMessages registers a change-notification subscription,
// optionally scoped to one conversation the caller participates in.
func (a *App) SubscribeMessages(ctx context.Context, userID, conversationID string, handler func(domain.Message)) (*notify.Subscription, error) {
	if conversationID != "" {
		if _, err := a.authorizedConversation(userID, conversationID); err != nil {
			return nil, err
		}
	}
	return a.notifier.SubscribeMessages(ctx, conversationID, handler)
}

func (a *App) authorizedConversation(userID, conversationID string) (domain.Conversation, error) {
	conversation, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("fetch conversation: %w", err)
	}
	if !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	if !conversation.HasParticipant(userID) {
		return domain.Conversation{}, ErrNotParticipant
	}
	return conversation, nil
}
