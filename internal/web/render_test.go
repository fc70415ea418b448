package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoflow-web/internal/model"
)

func TestEveryPageRenders(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	user := &model.User{ID: "u1", Email: "a@b.co", FirstName: "Ada", LastName: "Byron", PlatformRole: model.RolePlatformAdmin, TenantID: "t1", CreatedAt: "2025-09-07T10:24:38Z"}
	tenant := &model.Tenant{ID: "t1", Name: "Test Studio", Subdomain: "teststudio", StorageQuotaBytes: 1 << 30, StorageUsedBytes: 1 << 28}

	pages := map[string]Page{
		"home":            {},
		"login":           {Data: map[string]any{"From": "/profile"}, FormError: "Invalid username or password"},
		"register":        {Success: "Check your email", Form: map[string]string{"email": "a@b.co"}},
		"verify_email":    {Data: map[string]any{"State": "error", "Message": "Invalid or expired verification token"}},
		"forgot_password": {},
		"reset_password":  {Form: map[string]string{"token": "abc"}},
		"dashboard":       {User: user, Tenant: tenant},
		"profile":         {User: user, Data: map[string]any{"Banner": &Flash{Kind: FlashError, Message: "Profile service temporarily unavailable.", Retry: "/profile"}}},
		"tenant":          {User: user, Tenant: tenant, Data: map[string]any{"CanEdit": true}},
		"admin":           {User: user, Data: map[string]any{"ActiveSessions": 3}},
	}

	for name, page := range pages {
		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, name, page)
		assert.Equal(t, http.StatusOK, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "PhotoFlow", name)
		assert.NotContains(t, rec.Body.String(), "<no value>", name)
	}
}

func TestProfileFallbackBanner(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "profile", Page{
		User: &model.User{FirstName: "Test", LastName: "User", Email: "testuser@example.com"},
		Data: map[string]any{"Banner": &Flash{Kind: FlashError, Message: "Profile service temporarily unavailable. Using cached user data from login.", Retry: "/profile"}},
	})

	body := rec.Body.String()
	assert.Contains(t, body, "Using cached user data from login.")
	assert.Contains(t, body, "Retry")
	assert.Contains(t, body, "testuser@example.com")
	assert.Contains(t, body, "/avatar/TU.png")
}

func TestProfileSkeletonWhileLoading(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "profile", Page{Loading: true, Data: map[string]any{}})
	assert.Contains(t, rec.Body.String(), `class="skeleton"`)
}

func TestErrorPageAndUnknownTemplate(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), http.StatusTooManyRequests, "Too many requests")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")

	rec = httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "missing", Page{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFormValuesAreEscaped(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "login", Page{Form: map[string]string{"email": `"><script>alert(1)</script>`}})
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestStaticAssets(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".card")
}
