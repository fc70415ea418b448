package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"photoflow-web/internal/guard"
	"photoflow-web/internal/model"
)

type contextKey string

const claimsContextKey contextKey = "token_claims"

// TokenSource yields the access token kept server-side for the request's
// browser, or "".
type TokenSource func(r *http.Request) string

type GuardMiddleware struct {
	guard  *guard.Guard
	tokens TokenSource
	now    func() time.Time
}

func NewGuardMiddleware(g *guard.Guard, tokens TokenSource) *GuardMiddleware {
	return &GuardMiddleware{guard: g, tokens: tokens, now: time.Now}
}

func (m *GuardMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := m.guard.Decide(r.URL.Path, m.token(r), m.now())

		if decision.Action == guard.Redirect {
			slog.Debug("route guard redirect",
				"request_id", RequestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"class", decision.Class.String(),
				"location", decision.Location,
			)
			http.Redirect(w, r, decision.Location, http.StatusFound)
			return
		}

		if decision.Claims != nil && (decision.Class == guard.ClassProtected || decision.Class == guard.ClassAdmin) {
			w.Header().Set("X-User-ID", decision.Claims.UserID())
			w.Header().Set("X-Tenant-ID", decision.Claims.TenantID)
			w.Header().Set("X-User-Role", string(decision.Claims.PlatformRole))
			r = r.WithContext(context.WithValue(r.Context(), claimsContextKey, decision.Claims))
		}

		next.ServeHTTP(w, r)
	})
}

// token reads only the browser's token store. Authorization headers and
// cookies sent by the client are ignored.
func (m *GuardMiddleware) token(r *http.Request) string {
	if m.tokens == nil {
		return ""
	}

	return strings.TrimSpace(m.tokens(r))
}

func ClaimsFromContext(ctx context.Context) (*model.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*model.Claims)
	return claims, ok
}
