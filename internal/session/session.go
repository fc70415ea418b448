package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"photoflow-web/internal/apiclient"
	"photoflow-web/internal/event"
	"photoflow-web/internal/model"
	"photoflow-web/pkg/apierror"
)

const (
	DefaultRefreshTimeout = 15 * time.Second
	DefaultLogoutTimeout  = 5 * time.Second

	msgLoginFailed        = "Login failed"
	msgRegistrationFailed = "Registration failed"
	msgRegistered         = "Registration successful. Please check your email to verify your account."
	msgExpired            = "Your session has expired. Please sign in again."
)

// API is the part of the REST client a Session drives.
type API interface {
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error)
	Logout(ctx context.Context) (string, error)
	GetMe(ctx context.Context) (model.User, error)
	UpdateMe(ctx context.Context, req model.UpdateUserRequest) (model.User, error)
	GetTenant(ctx context.Context, tenantID string) (model.Tenant, error)
}

// Store is the token store a Session owns exclusively.
type Store interface {
	Access(ctx context.Context) string
	Refresh(ctx context.Context) string
	Set(ctx context.Context, tokens model.Tokens) error
	Clear(ctx context.Context) error
	SaveUser(ctx context.Context, user model.User) error
	LoadUser(ctx context.Context) (*model.User, bool)
	SaveTenant(ctx context.Context, tenant model.Tenant) error
	LoadTenant(ctx context.Context) (*model.Tenant, bool)
}

type Publisher interface {
	Publish(e event.Event)
}

type Options struct {
	// ID names the browser session in logs and events.
	ID             string
	Events         Publisher
	Logger         *slog.Logger
	RefreshTimeout time.Duration
	LogoutTimeout  time.Duration
}

// State is a point-in-time copy of the session fields.
type State struct {
	User            *model.User
	Tenant          *model.Tenant
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// Session holds one browser's signed-in user and drives its token lifecycle.
type Session struct {
	api    API
	store  Store
	id     string
	events Publisher
	logger *slog.Logger

	refreshTimeout time.Duration
	logoutTimeout  time.Duration

	mu          sync.RWMutex
	user        *model.User
	tenant      *model.Tenant
	loading     bool
	errMsg      string
	initialized bool
	closed      bool
	// generation changes on every sign-in and sign-out. Profile fetches
	// started under an older generation are discarded.
	generation uint64

	background sync.WaitGroup
}

func New(api API, store Store, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	logoutTimeout := opts.LogoutTimeout
	if logoutTimeout <= 0 {
		logoutTimeout = DefaultLogoutTimeout
	}

	return &Session{
		api:            api,
		store:          store,
		id:             opts.ID,
		events:         opts.Events,
		logger:         logger.With("component", "session", "session_id", opts.ID),
		refreshTimeout: refreshTimeout,
		logoutTimeout:  logoutTimeout,
		loading:        true,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Init hydrates the session the first time it is used. With stored tokens and
// a cached user it renders from the snapshot and refreshes in the background;
// without a snapshot it refreshes before returning. Later calls are no-ops.
func (s *Session) Init(ctx context.Context) {
	s.mu.Lock()
	if s.initialized || s.closed {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	gen := s.generation
	s.mu.Unlock()

	if s.store.Access(ctx) == "" && s.store.Refresh(ctx) == "" {
		s.mutate(func() { s.loading = false })
		return
	}

	cachedUser, hasUser := s.store.LoadUser(ctx)
	cachedTenant, _ := s.store.LoadTenant(ctx)

	if !hasUser {
		if err := s.refreshUser(ctx, gen); err != nil {
			s.logger.Warn("initial profile fetch failed", "error", err)
		}
		return
	}

	if !s.commit(gen, func() {
		s.user = cachedUser
		s.tenant = cachedTenant
		s.loading = false
	}) {
		return
	}

	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		err := s.refreshUser(bgCtx, gen)
		if err == nil || !s.current(gen) {
			return
		}
		// 401s were already handled by RefreshUser; transient failures keep
		// the cached session.
		if apierror.IsUnauthorized(err) || apierror.IsTransient(err) {
			return
		}

		s.logger.Warn("background refresh failed, signing out", "error", err)
		s.Logout(bgCtx)
	}()
}

// State returns a copy of the current session fields.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		IsAuthenticated: s.user != nil,
		IsLoading:       s.loading,
		Error:           s.errMsg,
	}
	if s.user != nil {
		user := *s.user
		state.User = &user
	}
	if s.tenant != nil {
		tenant := *s.tenant
		state.Tenant = &tenant
	}

	return state
}

// Login signs in and populates the session from the response. On failure the
// session error is set and the error is returned to the caller.
func (s *Session) Login(ctx context.Context, email string, password string) error {
	s.mutate(func() {
		s.loading = true
		s.errMsg = ""
	})
	defer s.mutate(func() { s.loading = false })

	result, err := s.api.Login(ctx, model.LoginRequest{Email: strings.TrimSpace(email), Password: password})
	if err == nil && result.User == nil {
		err = apierror.Malformed(0, errors.New("login response has no user"))
	}
	if err != nil {
		msg := apierror.UserMessage(err, msgLoginFailed)
		s.mutate(func() { s.errMsg = msg })
		s.logger.Info("login failed", "kind", apierror.KindOf(err), "error", err)
		return err
	}

	if err := s.store.Set(ctx, result.Tokens()); err != nil {
		s.logger.Error("failed to store tokens", "error", err)
	}
	if err := s.store.SaveUser(ctx, *result.User); err != nil {
		s.logger.Warn("failed to cache user", "error", err)
	}
	if result.Tenant != nil {
		if err := s.store.SaveTenant(ctx, *result.Tenant); err != nil {
			s.logger.Warn("failed to cache tenant", "error", err)
		}
	}

	user := *result.User
	s.mutate(func() {
		s.user = &user
		s.tenant = result.Tenant
		s.initialized = true
		s.generation++
	})

	s.logger.Info("user signed in", "user_id", user.ID, "role", user.PlatformRole)
	s.publish(event.TypeSessionLogin, user.ID)
	return nil
}

// Register creates an unverified account. The session stays signed out; the
// returned text is shown on the "check your email" view.
func (s *Session) Register(ctx context.Context, firstName string, lastName string, email string, password string) (string, error) {
	s.mutate(func() {
		s.loading = true
		s.errMsg = ""
	})
	defer s.mutate(func() { s.loading = false })

	result, err := s.api.Register(ctx, model.RegisterRequest{
		Email:     strings.TrimSpace(email),
		Password:  password,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	})
	if err != nil {
		msg := apierror.UserMessage(err, msgRegistrationFailed)
		s.mutate(func() { s.errMsg = msg })
		s.logger.Info("registration failed", "kind", apierror.KindOf(err), "error", err)
		return "", err
	}

	if result.Message != "" {
		return result.Message, nil
	}

	return msgRegistered, nil
}

// Logout clears the session and all tokens right away. The logout call to the
// API runs in the background with the token captured beforehand.
func (s *Session) Logout(ctx context.Context) {
	token := s.store.Access(ctx)
	userID := s.userID()

	if token != "" {
		callCtx, cancel := context.WithTimeout(apiclient.WithAccessToken(context.WithoutCancel(ctx), token), s.logoutTimeout)
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			defer cancel()

			if _, err := s.api.Logout(callCtx); err != nil {
				s.logger.Warn("logout call failed", "error", err)
			}
		}()
	}

	s.mutate(func() {
		s.user = nil
		s.tenant = nil
		s.errMsg = ""
		s.loading = false
		s.generation++
	})
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("failed to clear token store", "error", err)
	}

	s.logger.Info("user signed out", "user_id", userID)
	s.publish(event.TypeSessionLogout, userID)
}

// RefreshUser re-reads the profile, then the tenant. A tenant failure is only
// logged. A 401 signs the session out; any other failure leaves it as is. The
// result is dropped if the user signs in or out while the fetch is running.
func (s *Session) RefreshUser(ctx context.Context) error {
	return s.refreshUser(ctx, s.currentGeneration())
}

func (s *Session) refreshUser(ctx context.Context, gen uint64) error {
	if !s.commit(gen, func() { s.loading = true }) {
		return nil
	}
	defer s.mutate(func() { s.loading = false })

	user, err := s.api.GetMe(ctx)
	if err != nil {
		if !s.current(gen) {
			// Signed in, out or expired meanwhile; the state is no longer ours to touch.
			return fmt.Errorf("refresh user: %w", err)
		}
		switch {
		case errors.Is(err, apiclient.ErrSessionExpired):
			// The client already dropped the tokens and ran the expiry hook.
			if s.userID() != "" {
				s.Expire()
			}
		case apierror.IsUnauthorized(err):
			s.logger.Info("profile fetch unauthorized, signing out", "error", err)
			s.Logout(ctx)
		default:
			s.logger.Warn("profile fetch failed, keeping existing session", "kind", apierror.KindOf(err), "error", err)
		}
		return fmt.Errorf("refresh user: %w", err)
	}

	// The snapshot is written under the lock so it cannot land after a
	// concurrent Logout cleared the store.
	if !s.commit(gen, func() {
		s.user = &user
		if err := s.store.SaveUser(ctx, user); err != nil {
			s.logger.Warn("failed to cache user", "error", err)
		}
	}) {
		s.logger.Debug("discarding profile fetched for a previous sign-in", "user_id", user.ID)
		return nil
	}

	if strings.TrimSpace(user.TenantID) == "" {
		return nil
	}

	tenant, err := s.api.GetTenant(ctx, user.TenantID)
	if err != nil {
		s.logger.Warn("tenant fetch failed (non-critical)", "tenant_id", user.TenantID, "error", err)
		return nil
	}

	s.commit(gen, func() {
		s.tenant = &tenant
		if err := s.store.SaveTenant(ctx, tenant); err != nil {
			s.logger.Warn("failed to cache tenant", "error", err)
		}
	})

	return nil
}

// UpdateUser saves profile changes. On failure the session user is unchanged.
func (s *Session) UpdateUser(ctx context.Context, req model.UpdateUserRequest) (model.User, error) {
	user, err := s.api.UpdateMe(ctx, req)
	if err != nil {
		s.logger.Info("profile update rejected", "kind", apierror.KindOf(err), "error", err)
		return model.User{}, err
	}

	if s.mutate(func() { s.user = &user }) {
		if err := s.store.SaveUser(ctx, user); err != nil {
			s.logger.Warn("failed to cache user", "error", err)
		}
	}

	s.publish(event.TypeProfileUpdated, user.ID)
	return user, nil
}

// SetTenant replaces the tenant snapshot after a successful update.
func (s *Session) SetTenant(ctx context.Context, tenant model.Tenant) {
	if !s.mutate(func() { s.tenant = &tenant }) {
		return
	}
	if err := s.store.SaveTenant(ctx, tenant); err != nil {
		s.logger.Warn("failed to cache tenant", "error", err)
	}
}

// Expire drops the signed-in user after the API client gave up on the
// tokens. The tokens themselves are already gone.
func (s *Session) Expire() {
	userID := s.userID()

	s.mutate(func() {
		s.user = nil
		s.tenant = nil
		s.loading = false
		s.errMsg = msgExpired
		s.generation++
	})

	s.logger.Info("session expired", "user_id", userID)
	s.publish(event.TypeSessionExpired, userID)
}

func (s *Session) HasRole(role model.PlatformRole) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user != nil && s.user.PlatformRole == role
}

// CanAccess reports whether the user's role is at or above required.
func (s *Session) CanAccess(required model.PlatformRole) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user != nil && s.user.PlatformRole.AtLeast(required)
}

func (s *Session) ClearError() {
	s.mutate(func() { s.errMsg = "" })
}

// Close marks the session dead. Results that arrive afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.loading = false
	s.mu.Unlock()
}

// Wait blocks until background refresh and logout calls have finished.
func (s *Session) Wait() {
	s.background.Wait()
}

// mutate applies fn unless the session is closed, and reports whether it did.
func (s *Session) mutate(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	fn()
	return true
}

// commit is mutate for results that belong to generation gen.
func (s *Session) commit(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.generation != gen {
		return false
	}
	fn()
	return true
}

// current reports whether the session is open and still on generation gen.
func (s *Session) current(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.closed && s.generation == gen
}

func (s *Session) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

func (s *Session) userID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Session) publish(t event.Type, userID string) {
	if s.events == nil {
		return
	}

	s.events.Publish(event.New(t, s.id, userID, nil))
}
