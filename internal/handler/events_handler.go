package handler

import (
	"context"
	"log/slog"
	"net/http"

	"photoflow-web/internal/middleware"
)

// EventStream attaches a tab to its browser session's event feed.
type EventStream interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionID string) error
}

type EventsHandler struct {
	stream EventStream
}

func NewEventsHandler(stream EventStream) *EventsHandler {
	return &EventsHandler{stream: stream}
}

// Stream upgrades /events to a websocket carrying this browser's session
// events, so other open tabs follow a sign-out or expiry.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		http.Error(w, "missing browser session", http.StatusBadRequest)
		return
	}

	// The upgrader has already answered the client when Serve fails.
	if err := h.stream.Serve(r.Context(), w, r, id); err != nil {
		slog.Warn("event stream not opened", "session_id", id, "error", err)
	}
}
