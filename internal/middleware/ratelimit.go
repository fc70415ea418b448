package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// authFormPaths accept credential posts and get the stricter limiter.
var authFormPaths = map[string]struct{}{
	"/login":               {},
	"/register":            {},
	"/forgot-password":     {},
	"/reset-password":      {},
	"/verify-email/resend": {},
}

// unlimitedPrefixes serve assets and health checks.
var unlimitedPrefixes = []string{"/static/", "/avatar/", "/health"}

type clientLimiter struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	render     ErrorRenderer
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

// NewRateLimitMiddleware limits each client IP. A generalRPM of zero or less
// disables the general limit; authRPM falls back to 10.
func NewRateLimitMiddleware(generalRPM int, authRPM int, render ErrorRenderer) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		render:     orPlain(render),
		clients:    map[string]*clientLimiter{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.ToLower(r.URL.Path)
		for _, prefix := range unlimitedPrefixes {
			if strings.HasPrefix(path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		limiter := m.getLimiter(extractClientIP(r))

		target := limiter.general
		if _, ok := authFormPaths[path]; ok && r.Method == http.MethodPost {
			target = limiter.auth
		}

		if target != nil {
			if wait := retryAfter(target, time.Now()); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(wait))
				m.render(w, r, http.StatusTooManyRequests, "Too many requests. Please wait a minute and try again.")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter takes a token from l, or returns the whole seconds until one is
// available and leaves l untouched.
func retryAfter(l *rate.Limiter, now time.Time) int {
	res := l.ReserveN(now, 1)
	if !res.OK() {
		return 60
	}

	delay := res.DelayFrom(now)
	if delay <= 0 {
		return 0
	}
	res.CancelAt(now)

	return max(1, int(math.Round(delay.Seconds())))
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = time.Now()
		m.gcLocked()
		return limiter
	}

	created := &clientLimiter{
		auth:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.authRPM)), m.authRPM),
		lastSeen: time.Now(),
	}
	if m.generalRPM > 0 {
		created.general = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.generalRPM)), m.generalRPM)
	}
	m.clients[clientIP] = created
	m.gcLocked()

	return created
}

func (m *RateLimitMiddleware) gcLocked() {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func extractClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
