package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"photoflow-web/internal/model"
	"photoflow-web/internal/web"
	"photoflow-web/pkg/apierror"
)

const (
	msgProfileUnavailable = "Profile service temporarily unavailable. Using cached user data from login."
	msgProfileLoadFailed  = "Failed to load profile data"
	msgProfileUpdated     = "Profile updated successfully"
	msgProfileSaveFailed  = "Failed to update profile"
	msgPasswordsRequired  = "Current and new password are required"
	msgPasswordChanged    = "Password updated successfully"
	msgPasswordFailed     = "Failed to change password"
)

type ProfileHandler struct {
	*Pages
}

func NewProfileHandler(pages *Pages) *ProfileHandler {
	return &ProfileHandler{Pages: pages}
}

// Show re-reads the profile. When that fails the page falls back to the
// session's user with a banner offering a retry.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	page := h.page(w, r, b, "Profile")

	user, err := b.API.GetMe(r.Context())
	if err != nil {
		if h.expired(w, r, err, "/profile") {
			return
		}
		slog.Warn("profile fetch failed, using session user",
			"session_id", b.ID,
			"kind", apierror.KindOf(err),
			"error", err,
		)
		page.Data["Banner"] = &web.Flash{Kind: web.FlashError, Message: profileFetchMessage(err), Retry: "/profile"}
	} else {
		page.User = &user
	}

	if page.User != nil {
		page.Loading = false
		page.Form = profileForm(*page.User)
	}

	h.Renderer.Render(w, http.StatusOK, "profile", page)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	req := model.UpdateUserRequest{
		FirstName: strings.TrimSpace(r.PostForm.Get("firstName")),
		LastName:  strings.TrimSpace(r.PostForm.Get("lastName")),
	}

	if _, err := b.Session.UpdateUser(r.Context(), req); err != nil {
		if h.expired(w, r, err, "/profile") {
			return
		}

		page := h.page(w, r, b, "Profile")
		page.Form = map[string]string{"firstName": req.FirstName, "lastName": req.LastName}
		page.FormError = apierror.DetailMessage(err, msgProfileSaveFailed)
		h.Renderer.Render(w, formStatus(err), "profile", page)
		return
	}

	h.redirect(w, r, "/profile", &web.Flash{Kind: web.FlashSuccess, Message: msgProfileUpdated})
}

func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	req := model.ChangePasswordRequest{
		CurrentPassword: r.PostForm.Get("currentPassword"),
		NewPassword:     r.PostForm.Get("newPassword"),
	}

	fail := func(status int, msg string) {
		page := h.page(w, r, b, "Profile")
		if page.User != nil {
			page.Form = profileForm(*page.User)
		}
		page.Data["PasswordError"] = msg
		h.Renderer.Render(w, status, "profile", page)
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		fail(http.StatusUnprocessableEntity, msgPasswordsRequired)
		return
	}

	msg, err := b.API.ChangePassword(r.Context(), req)
	if err != nil {
		if h.expired(w, r, err, "/profile") {
			return
		}
		fail(formStatus(err), apierror.DetailMessage(err, msgPasswordFailed))
		return
	}

	if msg == "" {
		msg = msgPasswordChanged
	}
	h.redirect(w, r, "/profile", &web.Flash{Kind: web.FlashSuccess, Message: msg})
}

func profileFetchMessage(err error) string {
	switch apierror.KindOf(err) {
	case apierror.KindServer, apierror.KindMalformed:
		return msgProfileUnavailable
	}

	return apierror.UserMessage(err, msgProfileLoadFailed)
}

func profileForm(u model.User) map[string]string {
	return map[string]string{"firstName": u.FirstName, "lastName": u.LastName}
}
