package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mintgate/whitelist/internal/domain"
)

// HealthHandler reports service and database health.
type HealthHandler struct {
	store  domain.RegistrationStore
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store domain.RegistrationStore, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{store: store, logger: logger}
}

// Health handles GET /health. The registration count doubles as a liveness
// probe for the collection itself, not just the connection.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	fail := func(err error) {
		h.logger.Error("health check failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":    "error",
			"timestamp": timestamp,
			"error":     "database unavailable",
		})
	}

	if err := h.store.Ping(r.Context()); err != nil {
		fail(err)
		return
	}

	count, err := h.store.Count(r.Context())
	if err != nil {
		fail(err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"timestamp":     timestamp,
		"database":      "connected",
		"registrations": count,
	})
}
