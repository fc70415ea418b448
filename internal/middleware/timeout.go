package middleware

import (
	"context"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout puts a deadline on the request context. API calls made with it fail
// as network errors once it passes, so pages render their unavailable state
// instead of being cut off mid-write.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
