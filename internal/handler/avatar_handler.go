package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"photoflow-web/internal/avatar"
	"photoflow-web/internal/middleware"
)

type AvatarHandler struct {
	render middleware.ErrorRenderer
}

func NewAvatarHandler(render middleware.ErrorRenderer) *AvatarHandler {
	if render == nil {
		render = middleware.PlainError
	}
	return &AvatarHandler{render: render}
}

// Show serves /avatar/{initials}.png, optionally sized with ?size=.
func (h *AvatarHandler) Show(w http.ResponseWriter, r *http.Request) {
	initials, err := avatar.Normalize(chi.URLParam(r, "initials"))
	if err != nil {
		h.render(w, r, http.StatusBadRequest, err.Error())
		return
	}

	size := avatar.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size <= 0 {
			h.render(w, r, http.StatusBadRequest, "size must be a positive integer")
			return
		}
	}

	png, err := avatar.Render(initials, size)
	if err != nil {
		slog.Error("avatar render failed", "initials", initials, "error", err)
		h.render(w, r, http.StatusInternalServerError, "Avatar could not be drawn")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
