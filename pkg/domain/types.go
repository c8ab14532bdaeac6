package domain

import "time"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// User is an authenticated identity. Everything user-facing lives on the
// Profile; User only carries credentials.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public representation of a user. Its ID equals the
// owning user's ID.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatarUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName prefers the full name and falls back to the username.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// Conversation is a private two-party thread. The participant pair is
// unique: asking for the same pair again yields the same conversation.
type Conversation struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"userAId"`
	UserBID   string    `json:"userBId"`
	CreatedAt time.Time `json:"createdAt"`
}

// PartnerID returns the other participant for the given user, or "" when
// the user is not a participant.
func (c Conversation) PartnerID(userID string) string {
	switch userID {
	case c.UserAID:
		return c.UserBID
	case c.UserBID:
		return c.UserAID
	default:
		return ""
	}
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.UserAID || userID == c.UserBID)
}

// Message is immutable once created.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationSummary is the read-only projection behind the chat list:
// the partner's profile snippet plus the most recent message, if any.
// LastMessageCreatedAt is zero for conversations without messages.
type ConversationSummary struct {
	ConversationID       string    `json:"conversationId"`
	Username             string    `json:"username"`
	FullName             string    `json:"fullName"`
	AvatarURL            string    `json:"avatarUrl"`
	LastMessageContent   string    `json:"lastMessageContent,omitempty"`
	LastMessageCreatedAt time.Time `json:"lastMessageCreatedAt"`
}
