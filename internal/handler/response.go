package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"photoflow-web/internal/apiclient"
	"photoflow-web/internal/browser"
	"photoflow-web/internal/guard"
	"photoflow-web/internal/middleware"
	"photoflow-web/internal/web"
	"photoflow-web/pkg/apierror"
)

const (
	landingPath  = "/profile"
	maxFormBytes = 64 << 10

	msgNoSession = "Your browser session could not be started. Please reload the page."
)

// Pages holds what every page handler needs.
type Pages struct {
	Browsers *browser.Manager
	Cookies  *web.Cookies
	Renderer *web.Renderer
	Guard    *guard.Guard
}

// browser attaches the request's browser, hydrating its session on first use.
// Without a session id in the context it renders a 500 and reports false.
func (p *Pages) browser(w http.ResponseWriter, r *http.Request) (*browser.Browser, bool) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		slog.Error("request without browser session id", "path", r.URL.Path)
		p.Renderer.Error(w, r, http.StatusInternalServerError, msgNoSession)
		return nil, false
	}

	return p.Browsers.Get(r.Context(), id), true
}

// page is the base template data: session snapshot plus any pending flash.
func (p *Pages) page(w http.ResponseWriter, r *http.Request, b *browser.Browser, title string) web.Page {
	state := b.Session.State()

	page := web.Page{
		Title:   title,
		Path:    r.URL.Path,
		User:    state.User,
		Tenant:  state.Tenant,
		Loading: state.IsLoading,
		Data:    map[string]any{},
	}
	if flash, ok := p.Cookies.PopFlash(w, r); ok {
		page.Flash = flash
	}

	return page
}

func (p *Pages) redirect(w http.ResponseWriter, r *http.Request, location string, flash *web.Flash) {
	if flash != nil {
		p.Cookies.SetFlash(w, *flash)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// expired sends the browser to the login page when the API gave up on its
// tokens. from is where to come back to.
func (p *Pages) expired(w http.ResponseWriter, r *http.Request, err error, from string) bool {
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}

	http.Redirect(w, r, p.Guard.LoginURL(from), http.StatusSeeOther)
	return true
}

func (p *Pages) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		slog.Debug("invalid form body", "path", r.URL.Path, "error", err)
		p.Renderer.Error(w, r, http.StatusBadRequest, "The form could not be read. Please try again.")
		return false
	}

	return true
}

// formStatus is the status a re-rendered form is sent with after err.
func formStatus(err error) int {
	switch apierror.KindOf(err) {
	case apierror.KindNetwork, apierror.KindServer, apierror.KindMalformed:
		return http.StatusServiceUnavailable
	case apierror.KindUnauthorized:
		return http.StatusUnauthorized
	case apierror.KindForbidden:
		return http.StatusForbidden
	case apierror.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnprocessableEntity
	}
}

// safeReturn keeps only same-site absolute paths.
func safeReturn(from string) string {
	from = strings.TrimSpace(from)
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return ""
	}

	return from
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
