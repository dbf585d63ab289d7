package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthHandler reports readiness, including the data store.
type HealthHandler struct {
	ping    func(ctx context.Context) error
	backend string
	started time.Time
	logger  *zap.Logger
}

func NewHealthHandler(backend string, ping func(ctx context.Context) error, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		ping:    ping,
		backend: backend,
		started: time.Now(),
		logger:  logger,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"database": h.backend,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			resp["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
