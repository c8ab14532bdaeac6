package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dardasha/pkg/domain"
)

const (
	realtimeBuffer    = 32
	keepaliveInterval = 15 * time.Second
)

// handleRealtimeMessages streams message-insert events as server-sent
// events. An optional conversation_id query restricts the stream to one
// conversation (participant-checked); without it the caller receives
// every insert, which the chat list uses as a coarse refresh trigger.
func (s *Server) handleRealtimeMessages(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")

	// The notifier delivers on its own goroutine; hand events to the
	// response goroutine through a channel. A slow consumer drops events
	// rather than blocking the publisher; clients refetch on reconnect.
	events := make(chan domain.Message, realtimeBuffer)
	sub, err := s.app.SubscribeMessages(r.Context(), user.ID, conversationID, func(msg domain.Message) {
		select {
		case events <- msg:
		default:
			slog.Warn("realtime: dropping event for slow consumer", "user_id", user.ID)
		}
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Flush through the middleware wrappers via their Unwrap chain.
	rc := http.NewResponseController(w)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		slog.Warn("realtime: streaming unsupported", "err", err)
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		case msg := <-events:
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
