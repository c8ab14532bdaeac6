package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"dardasha/internal/app"
	"dardasha/internal/ratelimit"
	"dardasha/internal/util"
	"dardasha/pkg/auth"
	"dardasha/pkg/domain"
)

const maxBodyBytes = 1 << 20
const maxAvatarBytes = 5 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// AuthLimiter throttles signup/login per client IP; nil disables.
	AuthLimiter *ratelimit.FixedWindowLimiter
	TrustProxy  bool
}

// Server exposes the messaging HTTP surface.
type Server struct {
	app         *app.App
	mux         *http.ServeMux
	authLimiter *ratelimit.FixedWindowLimiter
	trustProxy  bool
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		mux:         http.NewServeMux(),
		authLimiter: cfg.AuthLimiter,
		trustProxy:  cfg.TrustProxy,
	}
	s.routes()
	return s
}

// Router returns the configured handler with ambient middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithCORS(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/signup", s.rateLimited(s.handleSignup))
	s.mux.HandleFunc("/auth/login", s.rateLimited(s.handleLogin))
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.Handle("/auth/me", s.authenticated(s.handleMe))

	// profiles
	s.mux.Handle("/profiles/me", s.authenticated(s.handleUpdateProfile))
	s.mux.Handle("/profiles/me/avatar", s.authenticated(s.handleUploadAvatar))
	s.mux.Handle("/profiles/search", s.authenticated(s.handleSearchProfiles))

	// conversations
	s.mux.Handle("/conversations", s.authenticated(s.handleConversations))
	s.mux.Handle("/conversations/", s.authenticated(s.handleConversationSub))

	// change notification
	s.mux.Handle("/realtime/messages", s.authenticated(s.handleRealtimeMessages))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authLimiter != nil && !s.authLimiter.Allow(util.ClientIP(r, s.trustProxy)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, err := s.app.SignUp(req.Email, req.Password, req.FullName, req.Username)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Profile: profile})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profile, err := s.app.FetchProfile(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// profile handlers
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, err := s.app.UpdateProfile(user.ID, req.Username, req.FullName, req.Status)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	contentType := r.Header.Get("Content-Type")
	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	profile, err := s.app.SaveAvatar(r.Context(), user.ID, contentType, body, r.ContentLength)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	results, err := s.app.SearchProfiles(user.ID, r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": results,
		"count": len(results),
	})
}

// conversation handlers
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.UserConversations(user.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	case http.MethodPost:
		var req startConversationRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		conversationID, err := s.app.StartConversation(user.ID, req.OtherUserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, startConversationResponse{ConversationID: conversationID})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleConversationSub(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(sub, "/") {
		http.NotFound(w, r)
		return
	}
	switch sub {
	case "partner":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		partner, err := s.app.ConversationPartner(user.ID, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, partner)
	case "messages":
		s.handleConversationMessages(w, r, user, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request, user domain.User, conversationID string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.ConversationMessages(user.ID, conversationID, 0)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": msgs,
			"count": len(msgs),
		})
	case http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		msg, err := s.app.SendMessage(r.Context(), user.ID, conversationID, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		methodNotAllowed(w)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string         `json:"token"`
	Profile domain.Profile `json:"profile"`
}

type updateProfileRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Status   string `json:"status"`
}

type startConversationRequest struct {
	OtherUserID string `json:"otherUserId"`
}

type startConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

// writeAppError maps application sentinels onto the wire taxonomy:
// 401/403 authorization, 404 not found, 4xx validation, 500 otherwise.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrNotParticipant):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists), errors.Is(err, app.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrInvalidUsername),
		errors.Is(err, app.ErrFullNameRequired),
		errors.Is(err, app.ErrSearchQueryRequired),
		errors.Is(err, app.ErrCannotChatWithSelf),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrUnsupportedAvatarType),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrAvatarStorageDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
