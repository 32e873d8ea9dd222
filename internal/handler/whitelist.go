package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mintgate/whitelist/internal/domain"
	"github.com/mintgate/whitelist/internal/middleware"
	"github.com/mintgate/whitelist/internal/service"
	"github.com/mintgate/whitelist/internal/telemetry"
)

// WhitelistHandler exposes the registration operations over HTTP/JSON.
type WhitelistHandler struct {
	service  *service.WhitelistService
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
	validate *validator.Validate
}

// NewWhitelistHandler creates a new whitelist handler.
func NewWhitelistHandler(svc *service.WhitelistService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *WhitelistHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhitelistHandler{
		service:  svc,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
	}
}

// registerRequest is the POST /api/whitelist/register payload.
type registerRequest struct {
	Address string `json:"address" validate:"required"`
}

// registrationResponse is the public view of a registration. IP address and
// user agent are stored but never returned.
type registrationResponse struct {
	Address      string `json:"address"`
	RegisteredAt string `json:"registeredAt"`
}

func toRegistrationResponse(reg *domain.Registration) registrationResponse {
	return registrationResponse{
		Address:      reg.Address,
		RegisteredAt: reg.RegisteredAt.UTC().Format(time.RFC3339Nano),
	}
}

// Register handles POST /api/whitelist/register.
//
// Response codes:
// - 201 Created: address registered
// - 400 Bad Request: missing, wrong-typed, or malformed address
// - 409 Conflict: address already registered (includes the original entry)
// - 500 Internal Server Error: storage failure
func (h *WhitelistHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("whitelist.register", "request body must be JSON with a string address field"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, domain.Invalid("whitelist.register", "address is required"))
		return
	}

	clientIP := middleware.GetClientIPFromContext(r.Context())
	userAgent := r.UserAgent()

	reg, err := h.service.Register(r.Context(), req.Address, clientIP, userAgent)
	if err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			h.metrics.RegistrationConflicts.Inc()

			resp := map[string]interface{}{
				"success": false,
				"message": domain.ErrorMessage(err),
			}
			// Surface the original entry's address and timestamp, never its
			// ip/userAgent.
			if existing := domain.ExistingRegistration(err); existing != nil {
				resp["address"] = existing.Address
				resp["registeredAt"] = existing.RegisteredAt.UTC().Format(time.RFC3339Nano)
			}
			respondJSON(w, http.StatusConflict, resp)
			return
		}
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.RegistrationsCreated.Inc()
	h.logger.Info("address registered", "address", reg.Address, "ip", clientIP)

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"message":      "Address registered successfully",
		"address":      reg.Address,
		"registeredAt": reg.RegisteredAt.UTC().Format(time.RFC3339Nano),
	})
}

// Check handles GET /api/whitelist/check/{address}.
func (h *WhitelistHandler) Check(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")

	reg, found, err := h.service.Check(r.Context(), addr)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"success":      true,
		"isRegistered": found,
		"registration": nil,
	}
	if found {
		h.metrics.AddressChecks.WithLabelValues("registered").Inc()
		resp["registration"] = toRegistrationResponse(reg)
	} else {
		h.metrics.AddressChecks.WithLabelValues("unregistered").Inc()
	}

	respondJSON(w, http.StatusOK, resp)
}

// List handles GET /api/whitelist/list?page=&limit=.
func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := h.service.List(r.Context(), q.Get("page"), q.Get("limit"))
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	regs := make([]registrationResponse, len(page.Registrations))
	for i := range page.Registrations {
		regs[i] = toRegistrationResponse(&page.Registrations[i])
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"count":         len(regs),
		"total":         page.Total,
		"page":          page.Page,
		"totalPages":    page.TotalPages,
		"registrations": regs,
	})
}

// Stats handles GET /api/whitelist/stats.
func (h *WhitelistHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats": map[string]int64{
			"total":    stats.Total,
			"today":    stats.Today,
			"lastWeek": stats.LastWeek,
		},
	})
}

// Remove handles DELETE /api/whitelist/{address}.
func (h *WhitelistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")

	if err := h.service.Remove(r.Context(), addr); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.RegistrationsRemoved.Inc()
	h.logger.Info("address removed", "address", addr)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Address removed from whitelist",
	})
}
