package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionLogin   Type = "session.login"
	TypeSessionLogout  Type = "session.logout"
	TypeSessionExpired Type = "session.expired"
	TypeProfileUpdated Type = "profile.updated"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"` // browser session the event belongs to
	UserID    string `json:"user_id,omitempty"`
}

func New(t Type, sessionID string, userID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SessionID: sessionID,
		UserID:    userID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
