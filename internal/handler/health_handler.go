package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"photoflow-web/internal/model"
)

const (
	serviceName    = "photoflow-web"
	serviceVersion = "1.0.0"
)

// StoragePing checks the token store backend. Nil means nothing to check.
type StoragePing func(ctx context.Context) error

type HealthHandler struct {
	environment string
	apiURL      string
	ping        StoragePing
	started     time.Time
}

func NewHealthHandler(environment string, apiURL string, ping StoragePing) *HealthHandler {
	return &HealthHandler{environment: environment, apiURL: apiURL, ping: ping, started: time.Now()}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := model.HealthStatus{
		Status:      "healthy",
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Service:     serviceName,
		Version:     serviceVersion,
		Uptime:      time.Since(h.started).Seconds(),
		Environment: h.environment,
		API: model.HealthAPI{
			Configured: h.apiURL != "",
			URL:        h.apiURL,
		},
	}
	if status.API.URL == "" {
		status.API.URL = "not configured"
	}

	code := http.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status.Storage = "ok"
		if err := h.ping(ctx); err != nil {
			slog.Error("token store health check failed", "error", err)
			status.Status = "unhealthy"
			status.Storage = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, status)
}
