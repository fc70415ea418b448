package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoflow-web/internal/apiclient"
	"photoflow-web/internal/event"
	"photoflow-web/internal/model"
	"photoflow-web/internal/tokenstore"
)

func ptr(s string) *string { return &s }

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newManager(t *testing.T, backend tokenstore.Backend, mux *http.ServeMux) (*Manager, *recorder) {
	t.Helper()

	if mux == nil {
		mux = http.NewServeMux()
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	events := &recorder{}
	m := NewManager(backend, Config{
		API:    apiclient.Config{BaseURL: server.URL + "/api/v1", Timeout: 2 * time.Second},
		Events: events,
	})
	t.Cleanup(m.Close)

	return m, events
}

func TestGetCreatesOnce(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, tokenstore.NewMemoryBackend(), nil)
	ctx := context.Background()

	_, ok := m.Lookup("sid-1")
	assert.False(t, ok)

	first := m.Get(ctx, "sid-1")
	second := m.Get(ctx, "sid-1")
	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Len())

	state := first.Session.State()
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsAuthenticated)

	found, ok := m.Lookup("sid-1")
	require.True(t, ok)
	assert.Same(t, first, found)
}

func TestGetHydratesFromStoredSnapshot(t *testing.T) {
	t.Parallel()

	user := model.User{ID: "user-1", FirstName: "Test", LastName: "User", PlatformRole: model.RoleUser}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": user})
	})

	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	store := tokenstore.New(backend, "sid-1")
	require.NoError(t, store.Set(ctx, model.Tokens{AccessToken: ptr("T1"), RefreshToken: ptr("R1")}))
	require.NoError(t, store.SaveUser(ctx, user))

	m, _ := newManager(t, backend, mux)
	b := m.Get(ctx, "sid-1")

	state := b.Session.State()
	require.True(t, state.IsAuthenticated)
	assert.Equal(t, "user-1", state.User.ID)
	b.Session.Wait()
}

func TestAccessTokenDoesNotAttach(t *testing.T) {
	t.Parallel()

	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, tokenstore.New(backend, "sid-1").Set(ctx, model.Tokens{AccessToken: ptr("T1")}))

	m, _ := newManager(t, backend, nil)
	assert.Equal(t, "T1", m.AccessToken(ctx, "sid-1"))
	assert.Empty(t, m.AccessToken(ctx, ""))
	assert.Empty(t, m.AccessToken(ctx, "sid-2"))
	assert.Zero(t, m.Len())
}

func TestExpiryHookExpiresSession(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized", "message": "Token expired"})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid or expired refresh token"})
	})

	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	store := tokenstore.New(backend, "sid-1")
	require.NoError(t, store.Set(ctx, model.Tokens{AccessToken: ptr("T1"), RefreshToken: ptr("R1")}))

	m, events := newManager(t, backend, mux)
	b := m.Get(ctx, "sid-1")
	b.Session.Wait()

	state := b.Session.State()
	assert.False(t, state.IsAuthenticated)
	assert.NotEmpty(t, state.Error)
	assert.Empty(t, store.Access(ctx))
	assert.Empty(t, store.Refresh(ctx))
	assert.Equal(t, []event.Type{event.TypeSessionExpired}, events.types())
}

func TestSweepEvictsIdleBrowsers(t *testing.T) {
	t.Parallel()

	backend := tokenstore.NewMemoryBackend()
	m, _ := newManager(t, backend, nil)
	ctx := context.Background()

	clock := time.Now()
	m.now = func() time.Time { return clock }

	stale := m.Get(ctx, "stale")
	clock = clock.Add(20 * time.Minute)
	fresh := m.Get(ctx, "fresh")
	clock = clock.Add(15 * time.Minute)

	assert.Equal(t, 1, m.Sweep(ctx))
	assert.Equal(t, 1, m.Len())

	_, ok := m.Lookup("stale")
	assert.False(t, ok)
	_, ok = m.Lookup("fresh")
	assert.True(t, ok)

	// A closed session no longer reacts to late changes.
	stale.Session.Expire()
	assert.Empty(t, stale.Session.State().Error)
	fresh.Session.Expire()
	assert.NotEmpty(t, fresh.Session.State().Error)
}

func TestSweepPurgesExpiredState(t *testing.T) {
	t.Parallel()

	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, tokenstore.New(backend, "gone").Set(ctx, model.Tokens{AccessToken: ptr("T1")}))

	m, _ := newManager(t, backend, nil)
	m.now = func() time.Time { return time.Now().Add(DefaultStateTTL + time.Hour) }

	m.Sweep(ctx)
	assert.Zero(t, backend.Len())
	assert.Empty(t, m.AccessToken(ctx, "gone"))
}

func TestForget(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, tokenstore.NewMemoryBackend(), nil)
	ctx := context.Background()

	m.Get(ctx, "sid-1")
	m.Forget("sid-1")
	m.Forget("missing")
	assert.Zero(t, m.Len())
}

func TestDiscardClearsStoredState(t *testing.T) {
	t.Parallel()

	backend := tokenstore.NewMemoryBackend()
	m, _ := newManager(t, backend, nil)
	ctx := context.Background()

	require.NoError(t, tokenstore.New(backend, "sid-1").Set(ctx, model.Tokens{AccessToken: ptr("T1"), RefreshToken: ptr("R1")}))
	require.NoError(t, tokenstore.New(backend, "sid-2").Set(ctx, model.Tokens{AccessToken: ptr("T2")}))

	m.Discard(ctx, "sid-1")

	_, attached := m.Lookup("sid-1")
	assert.False(t, attached)
	assert.Empty(t, m.AccessToken(ctx, "sid-1"))
	assert.Empty(t, tokenstore.New(backend, "sid-1").Refresh(ctx))
	assert.Equal(t, "T2", m.AccessToken(ctx, "sid-2"))
}
