package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dardasha/pkg/domain"
	"dardasha/pkg/notify"
)

// HTTPGateway talks to the dardasha service over HTTP; change
// notifications arrive on a server-sent-events stream.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout: the event stream stays open.
	streamClient *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway constructs a gateway against the service base URL.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		streamClient: &http.Client{},
	}
}

// SignUp registers an account. The caller signs in afterwards; no
// session is issued here.
func (g *HTTPGateway) SignUp(ctx context.Context, params SignUpParams) error {
	return g.doJSON(ctx, http.MethodPost, "/auth/signup", "", params, nil)
}

// SignIn authenticates and returns the session token plus profile.
func (g *HTTPGateway) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	payload := map[string]string{"email": email, "password": password}
	var creds Credentials
	if err := g.doJSON(ctx, http.MethodPost, "/auth/login", "", payload, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// SignOut revokes the session token server-side.
func (g *HTTPGateway) SignOut(ctx context.Context, token string) error {
	return g.doJSON(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// FetchProfile re-reads the caller's profile row.
func (g *HTTPGateway) FetchProfile(ctx context.Context, token string) (domain.Profile, error) {
	var profile domain.Profile
	if err := g.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// UpdateProfile upserts the caller's profile fields.
func (g *HTTPGateway) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (domain.Profile, error) {
	var profile domain.Profile
	if err := g.doJSON(ctx, http.MethodPatch, "/profiles/me", token, update, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// UploadAvatar stores the image blob and returns the refreshed profile
// carrying the public URL.
func (g *HTTPGateway) UploadAvatar(ctx context.Context, token, contentType string, data []byte) (domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/profiles/me/avatar", bytes.NewReader(data))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	var profile domain.Profile
	if err := g.doRequest(req, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// SearchProfiles resolves contact candidates by username or email.
func (g *HTTPGateway) SearchProfiles(ctx context.Context, token, query string) ([]domain.Profile, error) {
	path := "/profiles/search?q=" + url.QueryEscape(query)
	var resp listResponse[domain.Profile]
	if err := g.doJSON(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UserConversations calls the summaries remote procedure.
func (g *HTTPGateway) UserConversations(ctx context.Context, token string) ([]domain.ConversationSummary, error) {
	var resp listResponse[domain.ConversationSummary]
	if err := g.doJSON(ctx, http.MethodGet, "/conversations", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreatePrivateConversation resolves or creates the pair's conversation.
func (g *HTTPGateway) CreatePrivateConversation(ctx context.Context, token, otherUserID string) (string, error) {
	payload := map[string]string{"otherUserId": otherUserID}
	var resp struct {
		ConversationID string `json:"conversationId"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/conversations", token, payload, &resp); err != nil {
		return "", err
	}
	return resp.ConversationID, nil
}

// ConversationPartner returns the other participant's profile snippet.
func (g *HTTPGateway) ConversationPartner(ctx context.Context, token, conversationID string) (domain.Profile, error) {
	var profile domain.Profile
	path := fmt.Sprintf("/conversations/%s/partner", url.PathEscape(conversationID))
	if err := g.doJSON(ctx, http.MethodGet, path, token, nil, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// ConversationMessages returns the thread's rows newest-first.
func (g *HTTPGateway) ConversationMessages(ctx context.Context, token, conversationID string) ([]domain.Message, error) {
	var resp listResponse[domain.Message]
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	if err := g.doJSON(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SendMessage inserts a message row and returns the confirmed record.
func (g *HTTPGateway) SendMessage(ctx context.Context, token, conversationID, content string) (domain.Message, error) {
	payload := map[string]string{"content": content}
	var msg domain.Message
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	if err := g.doJSON(ctx, http.MethodPost, path, token, payload, &msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// SubscribeMessages opens the server-sent-events stream and dispatches
// decoded rows to handler until the subscription is closed.
func (g *HTTPGateway) SubscribeMessages(ctx context.Context, token, conversationID string, handler func(domain.Message)) (*notify.Subscription, error) {
	path := g.baseURL + "/realtime/messages"
	if conversationID != "" {
		path += "?conversation_id=" + url.QueryEscape(conversationID)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := g.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		return nil, classifyStatus(resp.StatusCode, readErrorMessage(resp.Body))
	}

	done := make(chan struct{})
	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var msg domain.Message
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
				slog.Warn("gateway: dropping malformed event", "err", err)
				continue
			}
			select {
			case <-done:
				return
			default:
			}
			handler(msg)
		}
	}()
	return notify.NewSubscription(func() {
		close(done)
		cancel()
	}), nil
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func (g *HTTPGateway) doJSON(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return g.doRequest(req, out)
}

func (g *HTTPGateway) doRequest(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, readErrorMessage(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}
	return nil
}

// classifyStatus maps HTTP statuses onto the gateway error taxonomy.
func classifyStatus(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthorization, message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case status >= 400 && status < 500:
		return &ValidationError{Reason: message}
	default:
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, status, message)
	}
}

func readErrorMessage(body io.Reader) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64*1024)).Decode(&errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return "request failed"
}
