package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"photoflow-web/internal/model"
)

const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyTenant       = "tenant"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyTenant}

// Backend is the key-value persistence behind a Store. Every namespace is one
// browser session.
type Backend interface {
	Get(ctx context.Context, namespace string, key string) (string, bool, error)
	Set(ctx context.Context, namespace string, key string, value string) error
	Delete(ctx context.Context, namespace string, keys ...string) error
}

// Purger is implemented by backends that need explicit cleanup of abandoned
// browsers. Redis expires keys on its own and does not implement it.
type Purger interface {
	PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store holds one browser's tokens and cached user/tenant snapshots.
type Store struct {
	backend   Backend
	namespace string
	logger    *slog.Logger
}

func New(backend Backend, namespace string) *Store {
	return &Store{
		backend:   backend,
		namespace: namespace,
		logger:    slog.Default().With("component", "tokenstore"),
	}
}

func (s *Store) Namespace() string {
	return s.namespace
}

// Access returns the stored access token, or "" when absent or unreadable.
func (s *Store) Access(ctx context.Context) string {
	return s.read(ctx, KeyAccessToken)
}

// Refresh returns the stored refresh token, or "" when absent or unreadable.
func (s *Store) Refresh(ctx context.Context) string {
	return s.read(ctx, KeyRefreshToken)
}

// Set writes the non-nil fields of tokens and leaves the others untouched.
func (s *Store) Set(ctx context.Context, tokens model.Tokens) error {
	var errs []error
	if tokens.AccessToken != nil && *tokens.AccessToken != "" {
		if err := s.backend.Set(ctx, s.namespace, KeyAccessToken, *tokens.AccessToken); err != nil {
			errs = append(errs, fmt.Errorf("store access token: %w", err))
		}
	}
	if tokens.RefreshToken != nil && *tokens.RefreshToken != "" {
		if err := s.backend.Set(ctx, s.namespace, KeyRefreshToken, *tokens.RefreshToken); err != nil {
			errs = append(errs, fmt.Errorf("store refresh token: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Clear drops both tokens and both snapshots. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.namespace, allKeys...); err != nil {
		return fmt.Errorf("clear token store: %w", err)
	}

	return nil
}

func (s *Store) SaveUser(ctx context.Context, user model.User) error {
	return s.writeJSON(ctx, KeyUser, user)
}

func (s *Store) LoadUser(ctx context.Context) (*model.User, bool) {
	var user model.User
	if !s.readJSON(ctx, KeyUser, &user) {
		return nil, false
	}

	return &user, true
}

func (s *Store) SaveTenant(ctx context.Context, tenant model.Tenant) error {
	return s.writeJSON(ctx, KeyTenant, tenant)
}

func (s *Store) LoadTenant(ctx context.Context) (*model.Tenant, bool) {
	var tenant model.Tenant
	if !s.readJSON(ctx, KeyTenant, &tenant) {
		return nil, false
	}

	return &tenant, true
}

func (s *Store) read(ctx context.Context, key string) string {
	value, ok, err := s.backend.Get(ctx, s.namespace, key)
	if err != nil {
		s.logger.Warn("token store unavailable, treating as empty", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}

	return value
}

func (s *Store) writeJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", key, err)
	}

	if err := s.backend.Set(ctx, s.namespace, key, string(data)); err != nil {
		return fmt.Errorf("store %s snapshot: %w", key, err)
	}

	return nil
}

func (s *Store) readJSON(ctx context.Context, key string, out any) bool {
	raw := s.read(ctx, key)
	if raw == "" {
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("discarding corrupt snapshot", "key", key, "error", err)
		return false
	}

	return true
}
