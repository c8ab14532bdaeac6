// Package gateway is the client's single doorway to the backend: every
// query, mutation, remote procedure, change-notification subscription,
// and avatar upload goes through the Gateway interface. Result shapes
// are explicit records; nothing untyped crosses this boundary.
package gateway

import (
	"context"

	"dardasha/pkg/domain"
	"dardasha/pkg/notify"
)

// Credentials is the result of a successful sign-in.
type Credentials struct {
	Token   string         `json:"token"`
	Profile domain.Profile `json:"profile"`
}

// SignUpParams carries the registration form.
type SignUpParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// ProfileUpdate carries the edit-profile form. Empty username/full name
// leave the current value untouched; status is set verbatim.
type ProfileUpdate struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Status   string `json:"status"`
}

// Gateway is the only component allowed to perform network I/O on the
// client's behalf. Errors follow the package taxonomy: ErrNetwork,
// ErrAuthorization, ErrNotFound, or *ValidationError.
type Gateway interface {
	// auth
	SignUp(ctx context.Context, params SignUpParams) error
	SignIn(ctx context.Context, email, password string) (Credentials, error)
	SignOut(ctx context.Context, token string) error
	FetchProfile(ctx context.Context, token string) (domain.Profile, error)

	// profile
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (domain.Profile, error)
	UploadAvatar(ctx context.Context, token, contentType string, data []byte) (domain.Profile, error)
	SearchProfiles(ctx context.Context, token, query string) ([]domain.Profile, error)

	// conversations (remote procedures)
	UserConversations(ctx context.Context, token string) ([]domain.ConversationSummary, error)
	CreatePrivateConversation(ctx context.Context, token, otherUserID string) (string, error)
	ConversationPartner(ctx context.Context, token, conversationID string) (domain.Profile, error)

	// messages
	ConversationMessages(ctx context.Context, token, conversationID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, token, conversationID, content string) (domain.Message, error)

	// change notification; empty conversationID subscribes table-wide
	SubscribeMessages(ctx context.Context, token, conversationID string, handler func(domain.Message)) (*notify.Subscription, error)
}
