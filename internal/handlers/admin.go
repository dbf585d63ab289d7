package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/darigo/apiserver/internal/metrics"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errInvalidUserType = errors.New("invalid userType")

// AdminHandler provides the moderation and account administration
// endpoints. Every route re-checks the admin role against the store.
type AdminHandler struct {
	userService     *services.UserService
	propertyService *services.PropertyService
	statsService    *services.StatsService
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

func NewAdminHandler(
	userService *services.UserService,
	propertyService *services.PropertyService,
	statsService *services.StatsService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		userService:     userService,
		propertyService: propertyService,
		statsService:    statsService,
		metrics:         m,
		logger:          logger,
	}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(r chi.Router, handler *AdminHandler, authn *Authenticator) {
	r.Use(authn.Require, authn.RequireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Patch("/users/{userID}/toggle-status", handler.ToggleUserStatus)
	r.Get("/properties", handler.ListProperties)
	r.Patch("/properties/{propertyID}/status", handler.SetPropertyStatus)
	r.Delete("/properties/{propertyID}", handler.DeleteProperty)
	r.Get("/stats", handler.Stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseUserFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), filter, offset, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(users, page, limit, total))
}

func (h *AdminHandler) ToggleUserStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if userID == principal.ID {
		writeError(w, http.StatusBadRequest, "cannot change your own account status")
		return
	}

	user, err := h.userService.ToggleActive(r.Context(), principal.ID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to update user status")
		return
	}
	h.logger.Info("user status toggled",
		zap.String("user_id", user.ID),
		zap.Bool("is_active", user.IsActive),
		zap.String("admin_id", principal.ID),
	)
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := types.PropertyStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	items, total, err := h.propertyService.ListForAdmin(r.Context(), status, offset, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to list properties")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

// SetPropertyStatus applies a moderation decision.
func (h *AdminHandler) SetPropertyStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.propertyService.SetStatus(r.Context(), principal, chi.URLParam(r, "propertyID"), req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to update property status")
		return
	}
	h.metrics.ObserveModeration(string(updated.Status))
	h.logger.Info("property moderated",
		zap.String("property_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("admin_id", principal.ID),
	)
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	id := chi.URLParam(r, "propertyID")

	if err := h.propertyService.AdminDelete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to delete property")
		return
	}
	h.logger.Info("property removed by admin", zap.String("property_id", id), zap.String("admin_id", principal.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "not found", "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
