package client

import (
	"context"
	"errors"
	"sync"

	"dardasha/pkg/domain"
	"dardasha/pkg/gateway"
)

// ErrNotSignedIn is returned by operations that need a session token
// when no one is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// Session owns the sign-in lifecycle and the locally persisted state.
// The live token and profile are restored from the StateStore at
// construction, so a restart lands the user back in a signed-in state.
type Session struct {
	gw    gateway.Gateway
	state StateStore

	mu      sync.Mutex
	token   string
	profile domain.Profile
	theme   domain.Theme
}

// NewSession restores any persisted session from state.
func NewSession(gw gateway.Gateway, state StateStore) (*Session, error) {
	persisted, err := state.Load()
	if err != nil {
		return nil, err
	}
	theme := persisted.Theme
	if theme == "" {
		theme = domain.ThemeLight
	}
	return &Session{
		gw:      gw,
		state:   state,
		token:   persisted.Token,
		profile: persisted.Profile,
		theme:   theme,
	}, nil
}

// SignUp registers a new account. It does not sign the user in; the
// caller goes through SignIn afterwards.
func (s *Session) SignUp(ctx context.Context, params gateway.SignUpParams) error {
	return s.gw.SignUp(ctx, params)
}

// SignIn authenticates and persists the resulting session.
func (s *Session) SignIn(ctx context.Context, email, password string) (domain.Profile, error) {
	creds, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return domain.Profile{}, err
	}
	s.mu.Lock()
	s.token = creds.Token
	s.profile = creds.Profile
	s.mu.Unlock()
	if err := s.persist(); err != nil {
		return domain.Profile{}, err
	}
	return creds.Profile, nil
}

// SignOut revokes the session server-side and clears the persisted
// state. Signing out while already signed out is a no-op, and a token
// the server no longer recognizes still clears locally.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.profile = domain.Profile{}
	s.mu.Unlock()
	if err := s.state.Clear(); err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	if err := s.gw.SignOut(ctx, token); err != nil && !errors.Is(err, gateway.ErrAuthorization) {
		return err
	}
	return nil
}

// FetchProfile re-reads the profile from the server and persists it.
func (s *Session) FetchProfile(ctx context.Context) (domain.Profile, error) {
	token := s.Token()
	if token == "" {
		return domain.Profile{}, ErrNotSignedIn
	}
	profile, err := s.gw.FetchProfile(ctx, token)
	if err != nil {
		return domain.Profile{}, err
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return profile, s.persist()
}

// UpdateProfile pushes profile edits and persists the returned row.
func (s *Session) UpdateProfile(ctx context.Context, update gateway.ProfileUpdate) (domain.Profile, error) {
	token := s.Token()
	if token == "" {
		return domain.Profile{}, ErrNotSignedIn
	}
	profile, err := s.gw.UpdateProfile(ctx, token, update)
	if err != nil {
		return domain.Profile{}, err
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return profile, s.persist()
}

// UploadAvatar stores the avatar image and persists the refreshed
// profile carrying its public URL.
func (s *Session) UploadAvatar(ctx context.Context, contentType string, data []byte) (domain.Profile, error) {
	token := s.Token()
	if token == "" {
		return domain.Profile{}, ErrNotSignedIn
	}
	profile, err := s.gw.UploadAvatar(ctx, token, contentType, data)
	if err != nil {
		return domain.Profile{}, err
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return profile, s.persist()
}

// SetTheme persists the theme preference.
func (s *Session) SetTheme(theme domain.Theme) error {
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return s.persist()
}

func (s *Session) Theme() domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) Profile() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// UserID is the signed-in user's id, or "" when signed out.
func (s *Session) UserID() string {
	return s.Profile().ID
}

func (s *Session) SignedIn() bool {
	return s.Token() != ""
}

func (s *Session) persist() error {
	s.mu.Lock()
	state := State{Token: s.token, Profile: s.profile, Theme: s.theme}
	s.mu.Unlock()
	return s.state.Save(state)
}
