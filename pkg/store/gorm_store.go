package store

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"dardasha/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &ProfileModel{}, &ConversationModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'message_models'
				AND constraint_name = 'message_models_conversation_id_fkey'
			) THEN
				ALTER TABLE message_models
				ADD CONSTRAINT message_models_conversation_id_fkey
				FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return nil, fmt.Errorf("ensure message foreign key: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveProfile upserts a profile by owner ID.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "avatar_url", "status", "updated_at"}),
	}).Create(&model).Error
}

// GetProfile returns the profile for a user ID.
func (s *GormStore) GetProfile(id string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// GetProfileByUsername looks up a profile by exact username.
func (s *GormStore) GetProfileByUsername(username string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SearchProfiles matches username or email case-insensitively.
func (s *GormStore) SearchProfiles(query, excludeID string, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		return []domain.Profile{}, nil
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	var models []ProfileModel
	if err := s.db.Model(&ProfileModel{}).
		Joins("JOIN user_models ON user_models.id = profile_models.id").
		Where("profile_models.id <> ?", excludeID).
		Where("profile_models.username ILIKE ? OR user_models.email ILIKE ?", pattern, pattern).
		Order("profile_models.username ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Profile, 0, len(models))
	for _, m := range models {
		res = append(res, profileFromModel(m))
	}
	return res, nil
}

// GetOrCreateConversation returns the existing conversation for the pair
// or inserts a new one. Concurrent creators converge on one row via the
// pair_key unique index.
func (s *GormStore) GetOrCreateConversation(conversation domain.Conversation) (domain.Conversation, error) {
	pairKey := PairKey(conversation.UserAID, conversation.UserBID)
	var existing ConversationModel
	err := s.db.Where("pair_key = ?", pairKey).First(&existing).Error
	if err == nil {
		return conversationFromModel(existing), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.Conversation{}, err
	}
	model := conversationToModel(conversation)
	model.PairKey = pairKey
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.Conversation{}, err
	}
	if err := s.db.Where("pair_key = ?", pairKey).First(&existing).Error; err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(existing), nil
}

// GetConversation retrieves one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

type summaryRow struct {
	ConversationID       string
	Username             string
	FullName             string
	AvatarURL            string
	LastMessageContent   *string
	LastMessageCreatedAt *time.Time
}

// ListUserConversations projects summaries server-side: partner profile
// plus latest message, ordered by last message time descending.
func (s *GormStore) ListUserConversations(userID string) ([]domain.ConversationSummary, error) {
	var rows []summaryRow
	if err := s.db.Raw(`
		SELECT c.id AS conversation_id,
		       p.username,
		       p.full_name,
		       p.avatar_url,
		       m.content AS last_message_content,
		       m.created_at AS last_message_created_at
		FROM conversation_models c
		JOIN profile_models p
		  ON p.id = CASE WHEN c.user_a_id = @user THEN c.user_b_id ELSE c.user_a_id END
		LEFT JOIN LATERAL (
			SELECT content, created_at
			FROM message_models
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) m ON true
		WHERE c.user_a_id = @user OR c.user_b_id = @user
		ORDER BY m.created_at DESC NULLS LAST, c.created_at DESC
	`, map[string]any{"user": userID}).Scan(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summary := domain.ConversationSummary{
			ConversationID: row.ConversationID,
			Username:       row.Username,
			FullName:       row.FullName,
			AvatarURL:      row.AvatarURL,
		}
		if row.LastMessageContent != nil {
			summary.LastMessageContent = *row.LastMessageContent
		}
		if row.LastMessageCreatedAt != nil {
			summary.LastMessageCreatedAt = row.LastMessageCreatedAt.UTC()
		}
		items = append(items, summary)
	}
	return items, nil
}

// AppendMessage records a message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListConversationMessages returns recent messages newest-first.
func (s *GormStore) ListConversationMessages(conversationID string, limit int) ([]domain.Message, error) {
	query := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		ID:        p.ID,
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		ID:        m.ID,
		Username:  m.Username,
		FullName:  m.FullName,
		AvatarURL: m.AvatarURL,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:        c.ID,
		UserAID:   c.UserAID,
		UserBID:   c.UserBID,
		CreatedAt: c.CreatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:        m.ID,
		UserAID:   m.UserAID,
		UserBID:   m.UserBID,
		CreatedAt: m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
