package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_UnlimitedGeneral(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(0, 1, nil).Handler(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_LimitedAuthPost(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(0, 1, nil).Handler(okHandler())

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, rec1.Code)

	// Burst of 1: the second immediate post is refused.
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))

	// Rendering the form is not an auth attempt.
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(1, 1, nil).Handler(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
}

func TestRateLimitMiddleware_SkipsAssets(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(1, 1, nil).Handler(okHandler())

	for _, path := range []string{"/static/app.css", "/avatar/AB.png", "/health", "/static/app.css"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(-1, 0, nil)
	assert.Equal(t, -1, mw.generalRPM)
	assert.Equal(t, 10, mw.authRPM)
}

func TestRetryAfterDoesNotSpendTokens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	limiter := rate.NewLimiter(rate.Every(2*time.Second), 1)

	assert.Equal(t, 0, retryAfter(limiter, now))
	assert.Equal(t, 2, retryAfter(limiter, now))
	assert.Equal(t, 1, retryAfter(limiter, now.Add(time.Second)))
	assert.Equal(t, 0, retryAfter(limiter, now.Add(2*time.Second)))
}
