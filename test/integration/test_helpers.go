//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"photoflow-web/internal/cache"
	"photoflow-web/internal/database"
	"photoflow-web/internal/model"
	"photoflow-web/internal/repository"
	"photoflow-web/internal/tokenstore"
)

const testPassword = "Password123!"

// redisBackend connects to PHOTOFLOW_TEST_REDIS_ADDR and skips the test when
// it is not set.
func redisBackend(t *testing.T, ttl time.Duration) *tokenstore.RedisBackend {
	t.Helper()

	addr := os.Getenv("PHOTOFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PHOTOFLOW_TEST_REDIS_ADDR not set")
	}

	client, err := cache.NewRedisClient(context.Background(), cache.RedisConfig{Addr: addr, PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return tokenstore.NewRedisBackend(client, ttl)
}

// openDB connects to PHOTOFLOW_TEST_DATABASE_URL, ensures the schema and
// skips the test when the variable is not set.
func openDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("PHOTOFLOW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PHOTOFLOW_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Config{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	return db
}

func postgresBackend(t *testing.T) *repository.ClientStateRepository {
	t.Helper()

	return repository.NewClientStateRepository(openDB(t).Pool)
}

// namespace returns a session id no other test run shares.
func namespace() string {
	return "it-" + uuid.NewString()
}

func ptr(s string) *string {
	return &s
}

// newAPI serves the handful of PhotoFlow endpoints a sign-in touches. Every
// login and refresh issues a new opaque token pair.
func newAPI(t *testing.T) (*httptest.Server, *model.User) {
	t.Helper()

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        "testuser@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PlatformRole: model.RoleTenantOwner,
	}

	var (
		mu   sync.Mutex
		seq  int
		live string
	)
	issue := func() map[string]any {
		seq++
		live = "access-" + strconv.Itoa(seq)
		return map[string]any{"accessToken": live, "refreshToken": "refresh-" + strconv.Itoa(seq), "user": user}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		mu.Lock()
		defer mu.Unlock()
		if req.Password != testPassword {
			respond(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid email or password"})
			return
		}
		respond(w, http.StatusOK, map[string]any{"success": true, "data": issue()})
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+live {
			respond(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
			return
		}
		respond(w, http.StatusOK, map[string]any{"success": true, "data": user})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]any{"success": true, "data": "Logged out successfully"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, user
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
