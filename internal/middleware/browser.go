package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const sessionIDContextKey contextKey = "browser_session_id"

// SessionCookies reads and writes the sealed browser session id cookie.
type SessionCookies interface {
	SessionID(r *http.Request) (string, bool)
	SetSessionID(w http.ResponseWriter, id string) error
}

// BrowserSession resolves the browser session id from its cookie, issuing a
// new one when the cookie is missing or was tampered with.
func BrowserSession(cookies SessionCookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := cookies.SessionID(r)
			if !ok {
				id = uuid.NewString()
				if err := cookies.SetSessionID(w, id); err != nil {
					slog.Error("failed to issue session cookie",
						"request_id", RequestIDFromContext(r.Context()),
						"error", err,
					)
				}
			}

			ctx := context.WithValue(r.Context(), sessionIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}
