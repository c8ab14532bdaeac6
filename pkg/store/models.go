package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProfileModel struct {
	ID        string `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;not null"`
	FullName  string
	AvatarURL string
	Status    string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type ConversationModel struct {
	ID      string `gorm:"primaryKey"`
	UserAID string `gorm:"not null;index"`
	UserBID string `gorm:"not null;index"`
	// PairKey is the canonical "low:high" participant pair, so the same
	// two users always resolve to the same conversation.
	PairKey   string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index"`
	UserID         string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}
