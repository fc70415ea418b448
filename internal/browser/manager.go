package browser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"photoflow-web/internal/apiclient"
	"photoflow-web/internal/session"
	"photoflow-web/internal/tokenstore"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultStateTTL    = 7 * 24 * time.Hour
)

// Browser is everything the server keeps for one browser session id.
type Browser struct {
	ID      string
	Store   *tokenstore.Store
	API     *apiclient.Client
	Session *session.Session

	lastSeen time.Time
}

type Config struct {
	// API is copied for every browser; OnSessionExpired is set by the manager.
	API         apiclient.Config
	// IdleTimeout evicts the in-memory browser.
	IdleTimeout time.Duration
	// StateTTL purges stored tokens for backends without their own expiry.
	StateTTL    time.Duration
	Events      session.Publisher
	Logger      *slog.Logger
}

// Manager keeps one Browser per session id and evicts idle ones.
type Manager struct {
	backend tokenstore.Backend
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	browsers map[string]*Browser
}

func NewManager(backend tokenstore.Backend, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.StateTTL < cfg.IdleTimeout {
		cfg.StateTTL = DefaultStateTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		backend:  backend,
		cfg:      cfg,
		logger:   logger.With("component", "browser"),
		now:      time.Now,
		browsers: map[string]*Browser{},
	}
}

// Get returns the browser for id, creating it on first use. A new browser's
// session is initialised before Get returns.
func (m *Manager) Get(ctx context.Context, id string) *Browser {
	m.mu.Lock()
	b, ok := m.browsers[id]
	if !ok {
		b = m.newBrowser(id)
		m.browsers[id] = b
	}
	b.lastSeen = m.now()
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("browser session attached", "session_id", id)
	}
	b.Session.Init(ctx)

	return b
}

// Lookup returns a live browser without creating one.
func (m *Manager) Lookup(id string) (*Browser, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.browsers[id]
	return b, ok
}

// AccessToken reads the stored access token for id straight from the
// backend, without attaching a session.
func (m *Manager) AccessToken(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}

	return tokenstore.New(m.backend, id).Access(ctx)
}

// Forget drops the browser from memory. Its stored state is left alone.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	b, ok := m.browsers[id]
	delete(m.browsers, id)
	m.mu.Unlock()

	if ok {
		b.Session.Close()
	}
}

// Discard drops the browser from memory and clears its stored state.
func (m *Manager) Discard(ctx context.Context, id string) {
	m.Forget(id)

	if err := tokenstore.New(m.backend, id).Clear(ctx); err != nil {
		m.logger.Warn("failed to clear discarded browser state", "session_id", id, "error", err)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.browsers)
}

// Sweep evicts browsers idle for longer than the idle timeout and purges
// stored state older than the state TTL where the backend supports it.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	cutoff := now.Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*Browser
	for id, b := range m.browsers {
		if b.lastSeen.Before(cutoff) {
			idle = append(idle, b)
			delete(m.browsers, id)
		}
	}
	m.mu.Unlock()

	for _, b := range idle {
		b.Session.Close()
	}

	if purger, ok := m.backend.(tokenstore.Purger); ok {
		purged, err := purger.PurgeIdle(ctx, now.Add(-m.cfg.StateTTL))
		if err != nil {
			m.logger.Warn("failed to purge idle browser state", "error", err)
		} else if purged > 0 {
			m.logger.Info("purged idle browser state", "entries", purged)
		}
	}

	if len(idle) > 0 {
		m.logger.Info("evicted idle browser sessions", "count", len(idle))
	}

	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close closes every session and waits for their background calls.
func (m *Manager) Close() {
	m.mu.Lock()
	browsers := make([]*Browser, 0, len(m.browsers))
	for id, b := range m.browsers {
		browsers = append(browsers, b)
		delete(m.browsers, id)
	}
	m.mu.Unlock()

	for _, b := range browsers {
		b.Session.Close()
	}
	for _, b := range browsers {
		b.Session.Wait()
	}
}

func (m *Manager) newBrowser(id string) *Browser {
	b := &Browser{ID: id, Store: tokenstore.New(m.backend, id)}

	apiCfg := m.cfg.API
	// The hook fires from inside an API call made by b.Session.
	apiCfg.OnSessionExpired = func(context.Context) {
		b.Session.Expire()
	}
	b.API = apiclient.New(apiCfg, b.Store)

	b.Session = session.New(b.API, b.Store, session.Options{
		ID:     id,
		Events: m.cfg.Events,
		Logger: m.cfg.Logger,
	})

	return b
}
