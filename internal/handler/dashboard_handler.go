package handler

import (
	"net/http"

	"photoflow-web/internal/middleware"
	"photoflow-web/internal/model"
)

type DashboardHandler struct {
	*Pages
}

func NewDashboardHandler(pages *Pages) *DashboardHandler {
	return &DashboardHandler{Pages: pages}
}

func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	h.Renderer.Render(w, http.StatusOK, "home", h.page(w, r, b, ""))
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	h.Renderer.Render(w, http.StatusOK, "dashboard", h.page(w, r, b, "Dashboard"))
}

// Admin is for platform admins. The route guard redirects everyone else
// first; the session role is checked again since the page shows server state.
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	if !b.Session.HasRole(model.RolePlatformAdmin) {
		http.Redirect(w, r, landingPath, http.StatusFound)
		return
	}

	page := h.page(w, r, b, "Administration")
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		page.Data["Claims"] = claims
	}
	page.Data["ActiveSessions"] = h.Browsers.Len()

	h.Renderer.Render(w, http.StatusOK, "admin", page)
}
