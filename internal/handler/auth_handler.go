package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"photoflow-web/internal/web"
	"photoflow-web/pkg/apierror"
)

const (
	msgCredentialsRequired  = "Email and password are required"
	msgRegisterFieldsNeeded = "All fields are required"
	msgEmailRequired        = "Please enter your email address"
	msgInvalidVerifyLink    = "Invalid verification link. Please check your email for the correct link."
	msgEmailVerified        = "Your email has been verified successfully! You can now sign in to your account."
	msgVerifyFailed         = "Email verification failed. Please try again or contact support."
	msgVerificationSent     = "Verification email sent successfully!"
	msgVerificationFailed   = "Failed to send verification email. Please try again."
	msgResendPrompt         = "Enter your email address to receive a new verification link."
	msgResetSent            = "If an account exists for that email, a password reset link is on its way."
	msgResetFailed          = "Failed to send password reset email"
	msgResetTokenMissing    = "Invalid or missing reset token. Please request a new link."
	msgPasswordReset        = "Your password has been reset. You can now sign in."
	msgPasswordResetFailed  = "Password reset failed"
	msgSignedOut            = "You have been signed out."
)

type AuthHandler struct {
	*Pages
}

func NewAuthHandler(pages *Pages) *AuthHandler {
	return &AuthHandler{Pages: pages}
}

func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	page := h.page(w, r, b, "Sign in")
	page.Data["From"] = safeReturn(r.URL.Query().Get("from"))

	// An expired session leaves its message behind for the login form.
	if msg := b.Session.State().Error; msg != "" {
		page.FormError = msg
		b.Session.ClearError()
	}

	h.Renderer.Render(w, http.StatusOK, "login", page)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	from := safeReturn(r.PostForm.Get("from"))

	page := h.page(w, r, b, "Sign in")
	page.Form = map[string]string{"email": email}
	page.Data["From"] = from

	if email == "" || password == "" {
		page.FormError = msgCredentialsRequired
		h.Renderer.Render(w, http.StatusUnprocessableEntity, "login", page)
		return
	}

	// Sign in on a fresh session id so an id planted before login is useless.
	fresh := h.Browsers.Get(r.Context(), uuid.NewString())
	if err := fresh.Session.Login(r.Context(), email, password); err != nil {
		page.FormError = fresh.Session.State().Error
		h.Browsers.Discard(r.Context(), fresh.ID)
		h.Renderer.Render(w, formStatus(err), "login", page)
		return
	}

	if err := h.Cookies.SetSessionID(w, fresh.ID); err != nil {
		slog.Error("failed to issue session cookie after login", "error", err)
		h.Browsers.Discard(r.Context(), fresh.ID)
		h.Renderer.Error(w, r, http.StatusInternalServerError, msgNoSession)
		return
	}
	h.Browsers.Discard(r.Context(), b.ID)

	if from == "" || from == h.Guard.LoginURL("") {
		from = landingPath
	}
	h.redirect(w, r, from, nil)
}

func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	h.Renderer.Render(w, http.StatusOK, "register", h.page(w, r, b, "Create account"))
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	form := map[string]string{
		"firstName": strings.TrimSpace(r.PostForm.Get("firstName")),
		"lastName":  strings.TrimSpace(r.PostForm.Get("lastName")),
		"email":     strings.TrimSpace(r.PostForm.Get("email")),
	}
	password := r.PostForm.Get("password")

	page := h.page(w, r, b, "Create account")
	page.Form = form

	if form["firstName"] == "" || form["lastName"] == "" || form["email"] == "" || password == "" {
		page.FormError = msgRegisterFieldsNeeded
		h.Renderer.Render(w, http.StatusUnprocessableEntity, "register", page)
		return
	}

	msg, err := b.Session.Register(r.Context(), form["firstName"], form["lastName"], form["email"], password)
	if err != nil {
		page.FormError = b.Session.State().Error
		b.Session.ClearError()
		h.Renderer.Render(w, formStatus(err), "register", page)
		return
	}

	page.Success = msg
	h.Renderer.Render(w, http.StatusCreated, "register", page)
}

// Logout signs out right away; the API call finishes in the background.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	b.Session.Logout(r.Context())

	h.redirect(w, r, h.Guard.LoginURL(""), &web.Flash{Kind: web.FlashInfo, Message: msgSignedOut})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	page := h.page(w, r, b, "Verify email")

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		page.Data["State"] = "invalid"
		page.Data["Message"] = msgInvalidVerifyLink
		h.Renderer.Render(w, http.StatusBadRequest, "verify_email", page)
		return
	}

	msg, err := b.API.VerifyEmail(r.Context(), token)
	if err != nil {
		page.Data["State"] = "error"
		page.Data["Message"] = apierror.UserMessage(err, msgVerifyFailed)
		h.Renderer.Render(w, formStatus(err), "verify_email", page)
		return
	}

	if msg == "" {
		msg = msgEmailVerified
	}
	page.Data["State"] = "success"
	page.Data["Message"] = msg
	h.Renderer.Render(w, http.StatusOK, "verify_email", page)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))

	page := h.page(w, r, b, "Verify email")
	page.Form = map[string]string{"email": email}
	page.Data["State"] = "pending"
	page.Data["Message"] = msgResendPrompt

	if email == "" {
		page.Data["ResendMessage"] = msgEmailRequired
		h.Renderer.Render(w, http.StatusUnprocessableEntity, "verify_email", page)
		return
	}

	msg, err := b.API.ResendVerification(r.Context(), email)
	if err != nil {
		page.Data["ResendMessage"] = apierror.UserMessage(err, msgVerificationFailed)
		h.Renderer.Render(w, formStatus(err), "verify_email", page)
		return
	}

	if msg == "" {
		msg = msgVerificationSent
	}
	page.Data["ResendMessage"] = msg
	h.Renderer.Render(w, http.StatusOK, "verify_email", page)
}

func (h *AuthHandler) ShowForgotPassword(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	h.Renderer.Render(w, http.StatusOK, "forgot_password", h.page(w, r, b, "Forgot password"))
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))

	page := h.page(w, r, b, "Forgot password")
	page.Form = map[string]string{"email": email}

	if email == "" {
		page.FormError = msgEmailRequired
		h.Renderer.Render(w, http.StatusUnprocessableEntity, "forgot_password", page)
		return
	}

	msg, err := b.API.ForgotPassword(r.Context(), email)
	if err != nil {
		page.FormError = apierror.UserMessage(err, msgResetFailed)
		h.Renderer.Render(w, formStatus(err), "forgot_password", page)
		return
	}

	if msg == "" {
		msg = msgResetSent
	}
	page.Success = msg
	h.Renderer.Render(w, http.StatusOK, "forgot_password", page)
}

func (h *AuthHandler) ShowResetPassword(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	page := h.page(w, r, b, "Reset password")
	page.Form = map[string]string{"token": token}

	status := http.StatusOK
	if token == "" {
		page.FormError = msgResetTokenMissing
		status = http.StatusBadRequest
	}

	h.Renderer.Render(w, status, "reset_password", page)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	token := strings.TrimSpace(r.PostForm.Get("token"))
	password := r.PostForm.Get("newPassword")

	page := h.page(w, r, b, "Reset password")
	page.Form = map[string]string{"token": token}

	if token == "" {
		page.FormError = msgResetTokenMissing
		h.Renderer.Render(w, http.StatusBadRequest, "reset_password", page)
		return
	}
	if password == "" {
		page.FormError = "Please enter a new password"
		h.Renderer.Render(w, http.StatusUnprocessableEntity, "reset_password", page)
		return
	}

	msg, err := b.API.ResetPassword(r.Context(), token, password)
	if err != nil {
		page.FormError = apierror.DetailMessage(err, msgPasswordResetFailed)
		h.Renderer.Render(w, formStatus(err), "reset_password", page)
		return
	}

	if msg == "" {
		msg = msgPasswordReset
	}
	page.Success = msg
	h.Renderer.Render(w, http.StatusOK, "reset_password", page)
}
