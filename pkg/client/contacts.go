package client

import (
	"context"
	"errors"
	"strings"

	"dardasha/pkg/domain"
	"dardasha/pkg/gateway"
)

// ErrEmptyQuery distinguishes a blank search from one with no matches;
// the surface renders it as an "enter a query" prompt.
var ErrEmptyQuery = errors.New("search query is empty")

// Contacts resolves other users by username or email and starts
// conversations with them.
type Contacts struct {
	gw      gateway.Gateway
	session *Session
}

func NewContacts(gw gateway.Gateway, session *Session) *Contacts {
	return &Contacts{gw: gw, session: session}
}

// Search returns matching profiles, excluding the caller. A blank
// query returns ErrEmptyQuery without hitting the server.
func (c *Contacts) Search(ctx context.Context, query string) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return c.gw.SearchProfiles(ctx, c.session.Token(), query)
}

// StartChat resolves or creates the private conversation with the
// given user and returns its id. Calling it again for the same user
// yields the same conversation.
func (c *Contacts) StartChat(ctx context.Context, otherUserID string) (string, error) {
	return c.gw.CreatePrivateConversation(ctx, c.session.Token(), otherUserID)
}
