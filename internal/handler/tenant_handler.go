package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"photoflow-web/internal/model"
	"photoflow-web/internal/web"
	"photoflow-web/pkg/apierror"
)

const (
	msgNoStudio          = "Your account is not linked to a studio."
	msgStudioLoadFailed  = "Failed to load studio details"
	msgStudioUpdated     = "Studio updated successfully"
	msgStudioSaveFailed  = "Failed to update studio"
	msgStudioNameMissing = "Studio name is required"
	msgStudioOwnersOnly  = "Only studio owners can change studio settings."
)

type TenantHandler struct {
	*Pages
}

func NewTenantHandler(pages *Pages) *TenantHandler {
	return &TenantHandler{Pages: pages}
}

func (h *TenantHandler) Show(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	page := h.page(w, r, b, "Studio")
	page.Data["CanEdit"] = b.Session.CanAccess(model.RoleTenantOwner)

	tenant, err := b.API.GetMyTenant(r.Context())
	switch {
	case err == nil:
		b.Session.SetTenant(r.Context(), tenant)
		page.Tenant = &tenant
	case h.expired(w, r, err, "/tenant"):
		return
	case errors.Is(err, model.ErrNoTenant):
		page.Data["Banner"] = &web.Flash{Kind: web.FlashInfo, Message: msgNoStudio}
		page.Data["CanEdit"] = false
	default:
		slog.Warn("tenant fetch failed", "session_id", b.ID, "kind", apierror.KindOf(err), "error", err)
		page.Data["Banner"] = &web.Flash{Kind: web.FlashError, Message: apierror.UserMessage(err, msgStudioLoadFailed), Retry: "/tenant"}
	}

	if page.Tenant != nil {
		page.Form = map[string]string{"name": page.Tenant.Name}
	}

	h.Renderer.Render(w, http.StatusOK, "tenant", page)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	if !b.Session.CanAccess(model.RoleTenantOwner) {
		h.Renderer.Error(w, r, http.StatusForbidden, msgStudioOwnersOnly)
		return
	}

	req := model.UpdateTenantRequest{Name: strings.TrimSpace(r.PostForm.Get("name"))}

	fail := func(status int, msg string) {
		page := h.page(w, r, b, "Studio")
		page.Data["CanEdit"] = true
		page.Form = map[string]string{"name": req.Name}
		page.FormError = msg
		h.Renderer.Render(w, status, "tenant", page)
	}

	if req.Name == "" {
		fail(http.StatusUnprocessableEntity, msgStudioNameMissing)
		return
	}

	tenant, err := b.API.UpdateMyTenant(r.Context(), req)
	if err != nil {
		if h.expired(w, r, err, "/tenant") {
			return
		}
		fail(formStatus(err), apierror.DetailMessage(err, msgStudioSaveFailed))
		return
	}

	b.Session.SetTenant(r.Context(), tenant)
	h.redirect(w, r, "/tenant", &web.Flash{Kind: web.FlashSuccess, Message: msgStudioUpdated})
}
