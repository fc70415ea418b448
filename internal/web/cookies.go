package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookie = "pf_session"
	FlashCookie   = "pf_flash"
)

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a one-shot banner carried across a redirect and shown on the
// next render only.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
	// Retry links the banner to an action that re-issues the failed fetch.
	Retry string `json:"retry,omitempty"`
}

// Cookies reads and writes the sealed browser cookies.
type Cookies struct {
	sealer *Sealer
	secure bool
	ttl    time.Duration
}

func NewCookies(sealer *Sealer, secure bool, ttl time.Duration) *Cookies {
	return &Cookies{sealer: sealer, secure: secure, ttl: ttl}
}

// SessionID returns the browser session id, or false when the cookie is
// missing or was not sealed by this server.
func (c *Cookies) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	raw, err := c.sealer.Open(cookie.Value)
	if err != nil {
		slog.Debug("discarding unsealable session cookie", "error", err)
		return "", false
	}

	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return "", false
	}

	return id.String(), true
}

func (c *Cookies) SetSessionID(w http.ResponseWriter, id string) error {
	sealed, err := c.sealer.Seal([]byte(id))
	if err != nil {
		return err
	}

	http.SetCookie(w, c.cookie(SessionCookie, sealed, int(c.ttl.Seconds())))
	return nil
}

func (c *Cookies) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(SessionCookie, "", -1))
}

func (c *Cookies) SetFlash(w http.ResponseWriter, flash Flash) {
	payload, err := json.Marshal(flash)
	if err != nil {
		slog.Warn("failed to encode flash", "error", err)
		return
	}

	sealed, err := c.sealer.Seal(payload)
	if err != nil {
		slog.Warn("failed to seal flash", "error", err)
		return
	}

	http.SetCookie(w, c.cookie(FlashCookie, sealed, 60))
}

// PopFlash returns the pending flash and expires its cookie.
func (c *Cookies) PopFlash(w http.ResponseWriter, r *http.Request) (*Flash, bool) {
	cookie, err := r.Cookie(FlashCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	http.SetCookie(w, c.cookie(FlashCookie, "", -1))

	raw, err := c.sealer.Open(cookie.Value)
	if err != nil {
		return nil, false
	}

	var flash Flash
	if err := json.Unmarshal(raw, &flash); err != nil || flash.Message == "" {
		return nil, false
	}

	return &flash, true
}

func (c *Cookies) cookie(name string, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
