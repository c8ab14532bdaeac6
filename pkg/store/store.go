package store

import "dardasha/pkg/domain"

// Store defines persistence operations for users, profiles,
// conversations, and messages.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// profiles
	SaveProfile(domain.Profile) error
	GetProfile(id string) (domain.Profile, bool, error)
	GetProfileByUsername(username string) (domain.Profile, bool, error)
	// SearchProfiles matches username or account email case-insensitively,
	// excluding excludeID, capped at limit.
	SearchProfiles(query, excludeID string, limit int) ([]domain.Profile, error)

	// conversations
	// GetOrCreateConversation is idempotent per participant pair.
	GetOrCreateConversation(conversation domain.Conversation) (domain.Conversation, error)
	GetConversation(id string) (domain.Conversation, bool, error)
	// ListUserConversations returns summaries ordered by most recent
	// message time descending; conversations without messages sort last.
	ListUserConversations(userID string) ([]domain.ConversationSummary, error)

	// messages
	AppendMessage(domain.Message) error
	// ListConversationMessages returns newest-first rows.
	ListConversationMessages(conversationID string, limit int) ([]domain.Message, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// PairKey returns the canonical participant pair key for two user IDs.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
