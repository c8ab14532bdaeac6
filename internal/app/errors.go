package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrUsernameTaken            = errors.New("username already taken")
	ErrInvalidUsername          = errors.New("username must be 3-32 characters: letters, digits, underscore")
	ErrFullNameRequired         = errors.New("full name required")

	ErrSearchQueryRequired = errors.New("search query required")

	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrCannotChatWithSelf   = errors.New("cannot start a conversation with yourself")

	// ErrNotParticipant is the row-level policy rejection: the caller is
	// not a member of the conversation it tried to touch.
	ErrNotParticipant = errors.New("not a conversation participant")

	ErrMessageEmpty = errors.New("message content required")

	ErrAvatarStorageDisabled = errors.New("avatar storage not configured")
	ErrUnsupportedAvatarType = errors.New("unsupported avatar content type")
)
