package store

import (
	"sort"
	"strings"
	"sync"

	"dardasha/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and the
// database-less dev mode.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User         // user ID -> user
	email         map[string]string              // email -> user ID
	profiles      map[string]domain.Profile      // user ID -> profile
	conversations map[string]domain.Conversation // conversation ID -> conversation
	pairs         map[string]string              // pair key -> conversation ID
	messages      map[string][]domain.Message    // conversation ID -> messages in insert order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		email:         make(map[string]string),
		profiles:      make(map[string]domain.Profile),
		conversations: make(map[string]domain.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string][]domain.Message),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveProfile upserts a profile.
func (m *MemoryStore) SaveProfile(p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

// GetProfile returns the profile for a user ID.
func (m *MemoryStore) GetProfile(id string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok, nil
}

// GetProfileByUsername looks up a profile by exact username.
func (m *MemoryStore) GetProfileByUsername(username string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.Username == username {
			return p, true, nil
		}
	}
	return domain.Profile{}, false, nil
}

// SearchProfiles matches username or email case-insensitively.
func (m *MemoryStore) SearchProfiles(query, excludeID string, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		return []domain.Profile{}, nil
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.Profile, 0)
	for _, p := range m.profiles {
		if p.ID == excludeID {
			continue
		}
		email := ""
		if u, ok := m.users[p.ID]; ok {
			email = strings.ToLower(u.Email)
		}
		if strings.Contains(strings.ToLower(p.Username), needle) || strings.Contains(email, needle) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// GetOrCreateConversation is idempotent per participant pair.
func (m *MemoryStore) GetOrCreateConversation(conversation domain.Conversation) (domain.Conversation, error) {
	pairKey := PairKey(conversation.UserAID, conversation.UserBID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.pairs[pairKey]; ok {
		return m.conversations[id], nil
	}
	m.conversations[conversation.ID] = conversation
	m.pairs[pairKey] = conversation.ID
	return conversation, nil
}

// GetConversation retrieves one conversation by ID.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

// ListUserConversations projects summaries ordered by last message time
// descending; conversations without messages sort last.
func (m *MemoryStore) ListUserConversations(userID string) ([]domain.ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.ConversationSummary, 0)
	for _, c := range m.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		partner := m.profiles[c.PartnerID(userID)]
		summary := domain.ConversationSummary{
			ConversationID: c.ID,
			Username:       partner.Username,
			FullName:       partner.FullName,
			AvatarURL:      partner.AvatarURL,
		}
		if msgs := m.messages[c.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			summary.LastMessageContent = last.Content
			summary.LastMessageCreatedAt = last.CreatedAt
		}
		items = append(items, summary)
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastMessageCreatedAt, items[j].LastMessageCreatedAt
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
	return items, nil
}

// AppendMessage records a message.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

// ListConversationMessages returns recent messages newest-first.
func (m *MemoryStore) ListConversationMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.messages[conversationID]
	msgs := make([]domain.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		msgs = append(msgs, stored[i])
		if limit > 0 && len(msgs) == limit {
			break
		}
	}
	return msgs, nil
}
