package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoflow-web/internal/apiclient"
	"photoflow-web/internal/event"
	"photoflow-web/internal/model"
	"photoflow-web/internal/tokenstore"
	"photoflow-web/pkg/apierror"
)

func ptr(s string) *string { return &s }

var (
	owner = model.User{
		ID:           "user-1",
		Email:        "a@b.co",
		FirstName:    "Ada",
		LastName:     "Byron",
		PlatformRole: model.RoleTenantOwner,
		TenantID:     "tenant-1",
	}
	studio = model.Tenant{ID: "tenant-1", Name: "Test Studio", Subdomain: "teststudio"}
)

type fakeAPI struct {
	mu sync.Mutex

	login    func(model.LoginRequest) (model.AuthResult, error)
	register func(model.RegisterRequest) (model.AuthResult, error)
	logout   func(context.Context) (string, error)
	getMe    func(context.Context) (model.User, error)
	updateMe func(model.UpdateUserRequest) (model.User, error)
	tenant   func(string) (model.Tenant, error)

	logoutCalls int
	getMeCalls  int
}

func (f *fakeAPI) Login(_ context.Context, req model.LoginRequest) (model.AuthResult, error) {
	return f.login(req)
}

func (f *fakeAPI) Register(_ context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	return f.register(req)
}

func (f *fakeAPI) Logout(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	if f.logout == nil {
		return "Logged out successfully", nil
	}
	return f.logout(ctx)
}

func (f *fakeAPI) GetMe(ctx context.Context) (model.User, error) {
	f.mu.Lock()
	f.getMeCalls++
	f.mu.Unlock()
	return f.getMe(ctx)
}

func (f *fakeAPI) UpdateMe(_ context.Context, req model.UpdateUserRequest) (model.User, error) {
	return f.updateMe(req)
}

func (f *fakeAPI) GetTenant(_ context.Context, id string) (model.Tenant, error) {
	if f.tenant == nil {
		return model.Tenant{}, apierror.New("Tenant not found", "", "", http.StatusNotFound)
	}
	return f.tenant(id)
}

func (f *fakeAPI) counts() (logouts int, getMes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls, f.getMeCalls
}

type recorder struct {
	mu     sync.Mutex
	events []event.Type
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Type(nil), r.events...)
}

func newSession(api *fakeAPI) (*Session, *tokenstore.Store, *recorder) {
	store := tokenstore.New(tokenstore.NewMemoryBackend(), "sid-1")
	events := &recorder{}
	return New(api, store, Options{ID: "sid-1", Events: events}), store, events
}

func signIn(t *testing.T, ctx context.Context, store *tokenstore.Store) {
	t.Helper()
	require.NoError(t, store.Set(ctx, model.Tokens{AccessToken: ptr("T1"), RefreshToken: ptr("R1")}))
	require.NoError(t, store.SaveUser(ctx, owner))
	require.NoError(t, store.SaveTenant(ctx, studio))
}

func TestLoginPopulatesSessionAndTokens(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: func(req model.LoginRequest) (model.AuthResult, error) {
		require.Equal(t, "a@b.co", req.Email)
		require.Equal(t, "Secret123!", req.Password)
		user := owner
		return model.AuthResult{AccessToken: ptr("T1"), RefreshToken: ptr("R1"), User: &user}, nil
	}}
	s, store, events := newSession(api)
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, "a@b.co", "Secret123!"))

	assert.Equal(t, "T1", store.Access(ctx))
	assert.Equal(t, "R1", store.Refresh(ctx))

	state := s.State()
	require.NotNil(t, state.User)
	assert.Equal(t, owner.ID, state.User.ID)
	assert.Nil(t, state.Tenant)
	assert.True(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)

	cached, ok := store.LoadUser(ctx)
	require.True(t, ok)
	assert.Equal(t, owner, *cached)
	assert.Equal(t, []event.Type{event.TypeSessionLogin}, events.types())
}

func TestLoginKeepsStoredRefreshWhenResponseOmitsIt(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: func(model.LoginRequest) (model.AuthResult, error) {
		user := owner
		tenant := studio
		return model.AuthResult{AccessToken: ptr("T9"), User: &user, Tenant: &tenant}, nil
	}}
	s, store, _ := newSession(api)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, model.Tokens{RefreshToken: ptr("R0")}))

	require.NoError(t, s.Login(ctx, "a@b.co", "pw"))
	assert.Equal(t, "T9", store.Access(ctx))
	assert.Equal(t, "R0", store.Refresh(ctx))
	require.NotNil(t, s.State().Tenant)
	assert.Equal(t, studio.Name, s.State().Tenant.Name)
}

func TestLoginFailureSetsError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"error field preferred", apierror.New("Invalid username or password", "Authentication failed", "", http.StatusUnauthorized), "Invalid username or password"},
		{"message fallback", apierror.New("", "Account locked", "", http.StatusForbidden), "Account locked"},
		{"generic fallback", errors.New("boom"), "Login failed"},
		{"network", apierror.Network(context.DeadlineExceeded), apierror.MsgNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeAPI{login: func(model.LoginRequest) (model.AuthResult, error) {
				return model.AuthResult{}, tc.err
			}}
			s, store, _ := newSession(api)
			ctx := context.Background()

			err := s.Login(ctx, "a@b.co", "wrong")
			require.ErrorIs(t, err, tc.err)

			state := s.State()
			assert.Equal(t, tc.want, state.Error)
			assert.False(t, state.IsLoading)
			assert.False(t, state.IsAuthenticated)
			assert.Empty(t, store.Access(ctx))

			s.ClearError()
			assert.Empty(t, s.State().Error)
		})
	}
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{register: func(req model.RegisterRequest) (model.AuthResult, error) {
		assert.Equal(t, "Ada", req.FirstName)
		user := owner
		return model.AuthResult{User: &user, Message: "Registration successful. Please check your email to verify your account."}, nil
	}}
	s, store, _ := newSession(api)
	ctx := context.Background()

	msg, err := s.Register(ctx, " Ada ", "Byron", "a@b.co", "Secret123!")
	require.NoError(t, err)
	assert.Contains(t, msg, "check your email")

	state := s.State()
	assert.Nil(t, state.User)
	assert.False(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	assert.Empty(t, store.Access(ctx))
}

func TestRegisterFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{register: func(model.RegisterRequest) (model.AuthResult, error) {
		return model.AuthResult{}, apierror.New("", "Email already registered", "", http.StatusConflict)
	}}
	s, _, _ := newSession(api)

	_, err := s.Register(context.Background(), "Ada", "Byron", "a@b.co", "Secret123!")
	require.Error(t, err)
	assert.Equal(t, "Email already registered", s.State().Error)
	assert.False(t, s.State().IsLoading)
}

func TestLogoutClearsEvenWhenCallFails(t *testing.T) {
	t.Parallel()

	var sawToken string
	api := &fakeAPI{
		login: func(model.LoginRequest) (model.AuthResult, error) {
			user := owner
			return model.AuthResult{AccessToken: ptr("T1"), RefreshToken: ptr("R1"), User: &user}, nil
		},
		logout: func(ctx context.Context) (string, error) {
			sawToken = ctx.Value(tokenKeyMarker{}).(string)
			return "", apierror.Network(errors.New("connection refused"))
		},
	}
	s, store, events := newSession(api)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.co", "Secret123!"))

	s.Logout(context.WithValue(ctx, tokenKeyMarker{}, "marker"))

	state := s.State()
	assert.Nil(t, state.User)
	assert.Nil(t, state.Tenant)
	assert.Empty(t, state.Error)
	assert.False(t, state.IsAuthenticated)
	assert.Empty(t, store.Access(ctx))
	assert.Empty(t, store.Refresh(ctx))
	_, ok := store.LoadUser(ctx)
	assert.False(t, ok)

	s.Wait()
	logouts, _ := api.counts()
	assert.Equal(t, 1, logouts)
	assert.Equal(t, "marker", sawToken)
	assert.Equal(t, []event.Type{event.TypeSessionLogin, event.TypeSessionLogout}, events.types())
}

type tokenKeyMarker struct{}

func TestRefreshUserUpdatesUserAndTenant(t *testing.T) {
	t.Parallel()

	renamed := owner
	renamed.FirstName = "Augusta"
	api := &fakeAPI{
		getMe:  func(context.Context) (model.User, error) { return renamed, nil },
		tenant: func(id string) (model.Tenant, error) { require.Equal(t, "tenant-1", id); return studio, nil },
	}
	s, store, _ := newSession(api)
	ctx := context.Background()

	require.NoError(t, s.RefreshUser(ctx))

	state := s.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "Augusta", state.User.FirstName)
	require.NotNil(t, state.Tenant)
	assert.Equal(t, studio.ID, state.Tenant.ID)
	assert.False(t, state.IsLoading)

	cached, ok := store.LoadTenant(ctx)
	require.True(t, ok)
	assert.Equal(t, studio, *cached)
}

func TestRefreshUserTenantFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		getMe: func(context.Context) (model.User, error) { return owner, nil },
		tenant: func(string) (model.Tenant, error) {
			return model.Tenant{}, apierror.New("Access denied", "", "", http.StatusForbidden)
		},
	}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	require.NoError(t, s.RefreshUser(ctx))
	assert.True(t, s.State().IsAuthenticated)
	assert.Equal(t, "T1", store.Access(ctx))

	logouts, _ := api.counts()
	assert.Zero(t, logouts)
}

func TestRefreshUserOnServerErrorKeepsState(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(model.LoginRequest) (model.AuthResult, error) {
			user := owner
			return model.AuthResult{AccessToken: ptr("T1"), User: &user}, nil
		},
		getMe: func(context.Context) (model.User, error) {
			return model.User{}, apierror.New("Internal server error", "", "", http.StatusInternalServerError)
		},
	}
	s, store, _ := newSession(api)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.co", "pw"))

	err := s.RefreshUser(ctx)
	require.Error(t, err)
	assert.Equal(t, apierror.KindServer, apierror.KindOf(err))

	state := s.State()
	require.NotNil(t, state.User)
	assert.Equal(t, owner.ID, state.User.ID)
	assert.Equal(t, "T1", store.Access(ctx))
}

func TestRefreshUserUnauthorizedLogsOut(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(model.LoginRequest) (model.AuthResult, error) {
			user := owner
			return model.AuthResult{AccessToken: ptr("T1"), RefreshToken: ptr("R1"), User: &user}, nil
		},
		getMe: func(context.Context) (model.User, error) {
			return model.User{}, apierror.New("Unauthorized", "Token expired", "", http.StatusUnauthorized)
		},
	}
	s, store, _ := newSession(api)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.co", "pw"))

	err := s.RefreshUser(ctx)
	require.True(t, apierror.IsUnauthorized(err))
	assert.False(t, s.State().IsAuthenticated)
	assert.Empty(t, store.Access(ctx))
	s.Wait()
}

func TestRefreshUserAfterClientExpiryKeepsExpiredMessage(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(model.LoginRequest) (model.AuthResult, error) {
			user := owner
			return model.AuthResult{AccessToken: ptr("T1"), User: &user}, nil
		},
		getMe: func(context.Context) (model.User, error) {
			cause := apierror.New("Unauthorized", "Token expired", "", http.StatusUnauthorized)
			return model.User{}, fmt.Errorf("%w: %w", apiclient.ErrSessionExpired, cause)
		},
	}
	s, _, events := newSession(api)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.co", "pw"))

	err := s.RefreshUser(ctx)
	require.True(t, errors.Is(err, apiclient.ErrSessionExpired))

	state := s.State()
	assert.False(t, state.IsAuthenticated)
	assert.Equal(t, msgExpired, state.Error)
	assert.Equal(t, []event.Type{event.TypeSessionLogin, event.TypeSessionExpired}, events.types())

	logouts, _ := api.counts()
	assert.Zero(t, logouts)
}

func TestRoleChecks(t *testing.T) {
	t.Parallel()

	for _, have := range model.RoleOrder {
		for _, need := range model.RoleOrder {
			t.Run(string(have)+"/"+string(need), func(t *testing.T) {
				t.Parallel()

				user := owner
				user.PlatformRole = have
				api := &fakeAPI{login: func(model.LoginRequest) (model.AuthResult, error) {
					return model.AuthResult{AccessToken: ptr("T"), User: &user}, nil
				}}
				s, _, _ := newSession(api)

				assert.False(t, s.CanAccess(need))
				assert.False(t, s.HasRole(need))

				require.NoError(t, s.Login(context.Background(), "a@b.co", "pw"))
				assert.Equal(t, have.Rank() >= need.Rank(), s.CanAccess(need))
				assert.Equal(t, have == need, s.HasRole(need))
			})
		}
	}
}

func TestCanAccessTenantOwner(t *testing.T) {
	t.Parallel()

	check := func(role model.PlatformRole) bool {
		user := owner
		user.PlatformRole = role
		api := &fakeAPI{login: func(model.LoginRequest) (model.AuthResult, error) {
			return model.AuthResult{AccessToken: ptr("T"), User: &user}, nil
		}}
		s, _, _ := newSession(api)
		require.NoError(t, s.Login(context.Background(), "a@b.co", "pw"))
		return s.CanAccess(model.RoleTenantOwner)
	}

	assert.True(t, check(model.RolePlatformAdmin))
	assert.True(t, check(model.RoleTenantOwner))
	assert.False(t, check(model.RoleUser))
	assert.False(t, check(model.PlatformRole("GUEST")))
}

func TestInitWithoutTokens(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	s, _, _ := newSession(api)
	assert.True(t, s.State().IsLoading)

	s.Init(context.Background())
	s.Wait()

	state := s.State()
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsAuthenticated)
	_, getMes := api.counts()
	assert.Zero(t, getMes)
}

func TestInitHydratesFromSnapshotBeforeRefresh(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fresh := owner
	fresh.LastName = "Lovelace"
	api := &fakeAPI{
		getMe: func(context.Context) (model.User, error) {
			<-release
			return fresh, nil
		},
		tenant: func(string) (model.Tenant, error) { return studio, nil },
	}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	s.Init(ctx)

	state := s.State()
	require.True(t, state.IsAuthenticated)
	assert.Equal(t, "Byron", state.User.LastName)
	require.NotNil(t, state.Tenant)

	close(release)
	s.Wait()
	assert.Equal(t, "Lovelace", s.State().User.LastName)

	s.Init(ctx)
	s.Wait()
	_, getMes := api.counts()
	assert.Equal(t, 1, getMes)
}

func TestInitWithoutSnapshotFetchesSynchronously(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{getMe: func(context.Context) (model.User, error) { return owner, nil }}
	s, store, _ := newSession(api)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, model.Tokens{RefreshToken: ptr("R1")}))

	s.Init(ctx)

	state := s.State()
	assert.True(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
}

func TestInitBackgroundFailureFallsBackToLogout(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{getMe: func(context.Context) (model.User, error) {
		return model.User{}, apierror.New("User not found", "", "", http.StatusNotFound)
	}}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	s.Init(ctx)
	s.Wait()

	assert.False(t, s.State().IsAuthenticated)
	assert.Empty(t, store.Access(ctx))
}

func TestInitBackgroundTransientFailureKeepsCache(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{getMe: func(context.Context) (model.User, error) {
		return model.User{}, apierror.Network(context.DeadlineExceeded)
	}}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	s.Init(ctx)
	s.Wait()

	assert.True(t, s.State().IsAuthenticated)
	assert.Equal(t, "T1", store.Access(ctx))
}

func TestClosedSessionIgnoresLateResults(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fresh := owner
	fresh.FirstName = "Late"
	api := &fakeAPI{getMe: func(context.Context) (model.User, error) {
		<-release
		return fresh, nil
	}}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	s.Init(ctx)
	s.Close()
	close(release)
	s.Wait()

	assert.Equal(t, "Ada", s.State().User.FirstName)
	assert.False(t, s.State().IsLoading)
}

func TestLogoutDuringBackgroundRefreshStaysSignedOut(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		getMe: func(context.Context) (model.User, error) {
			close(started)
			<-release
			return owner, nil
		},
		tenant: func(string) (model.Tenant, error) { return studio, nil },
	}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	s.Init(ctx)
	<-started
	s.Logout(ctx)
	close(release)
	s.Wait()

	state := s.State()
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
	assert.Nil(t, state.Tenant)
	assert.Empty(t, store.Access(ctx))

	_, cachedUser := store.LoadUser(ctx)
	assert.False(t, cachedUser)
	_, cachedTenant := store.LoadTenant(ctx)
	assert.False(t, cachedTenant)
}

func TestStaleRefreshDoesNotSignOutNewLogin(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		getMe: func(context.Context) (model.User, error) {
			close(started)
			<-release
			return model.User{}, apierror.New("Unauthorized", "Invalid token", "", http.StatusUnauthorized)
		},
		login: func(model.LoginRequest) (model.AuthResult, error) {
			user := owner
			return model.AuthResult{AccessToken: ptr("T2"), RefreshToken: ptr("R2"), User: &user}, nil
		},
	}
	s, store, _ := newSession(api)
	ctx := context.Background()
	signIn(t, ctx, store)

	s.Init(ctx)
	<-started
	require.NoError(t, s.Login(ctx, "a@b.co", "Secret123!"))
	close(release)
	s.Wait()

	assert.True(t, s.State().IsAuthenticated)
	assert.Equal(t, "T2", store.Access(ctx))

	logouts, _ := api.counts()
	assert.Zero(t, logouts)
}

func TestUpdateUserValidationErrorKeepsUser(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(model.LoginRequest) (model.AuthResult, error) {
			user := owner
			return model.AuthResult{AccessToken: ptr("T1"), User: &user}, nil
		},
		updateMe: func(req model.UpdateUserRequest) (model.User, error) {
			if req.FirstName == "" {
				return model.User{}, apierror.New("Validation failed", "First name is required", "", http.StatusBadRequest)
			}
			user := owner
			user.FirstName = req.FirstName
			return user, nil
		},
	}
	s, store, events := newSession(api)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.co", "pw"))

	_, err := s.UpdateUser(ctx, model.UpdateUserRequest{})
	require.Error(t, err)
	assert.Equal(t, "First name is required", apierror.DetailMessage(err, "Failed to update profile"))
	assert.Equal(t, owner, *s.State().User)

	updated, err := s.UpdateUser(ctx, model.UpdateUserRequest{FirstName: "Augusta", LastName: "Byron"})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "Augusta", s.State().User.FirstName)

	cached, ok := store.LoadUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "Augusta", cached.FirstName)
	assert.Contains(t, events.types(), event.TypeProfileUpdated)
}

func TestExpire(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: func(model.LoginRequest) (model.AuthResult, error) {
		user := owner
		return model.AuthResult{AccessToken: ptr("T1"), User: &user}, nil
	}}
	s, _, events := newSession(api)
	require.NoError(t, s.Login(context.Background(), "a@b.co", "pw"))

	s.Expire()

	state := s.State()
	assert.False(t, state.IsAuthenticated)
	assert.NotEmpty(t, state.Error)
	assert.Equal(t, []event.Type{event.TypeSessionLogin, event.TypeSessionExpired}, events.types())
}

func TestStateIsACopy(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: func(model.LoginRequest) (model.AuthResult, error) {
		user := owner
		return model.AuthResult{AccessToken: ptr("T1"), User: &user}, nil
	}}
	s, _, _ := newSession(api)
	require.NoError(t, s.Login(context.Background(), "a@b.co", "pw"))

	state := s.State()
	state.User.FirstName = "Mutated"
	assert.Equal(t, "Ada", s.State().User.FirstName)
}

func TestSetTenantUpdatesSnapshot(t *testing.T) {
	t.Parallel()

	s, store, _ := newSession(&fakeAPI{})
	ctx := context.Background()

	renamed := studio
	renamed.Name = "Renamed Studio"
	s.SetTenant(ctx, renamed)

	require.NotNil(t, s.State().Tenant)
	assert.Equal(t, "Renamed Studio", s.State().Tenant.Name)
	cached, ok := store.LoadTenant(ctx)
	require.True(t, ok)
	assert.Equal(t, "Renamed Studio", cached.Name)
}
