package handlers

import (
	"net/http"
	"strings"

	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler provides self-service account endpoints and the public user
// directory.
type UserHandler struct {
	userService   *services.UserService
	statsService  *services.StatsService
	logger        *zap.Logger
	maxUploadSize int64
}

func NewUserHandler(userService *services.UserService, statsService *services.StatsService, logger *zap.Logger, maxUploadSize int64) *UserHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &UserHandler{
		userService:   userService,
		statsService:  statsService,
		logger:        logger,
		maxUploadSize: maxUploadSize,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler, authn *Authenticator) {
	r.Get("/search", handler.Search)
	r.Group(func(r chi.Router) {
		r.Use(authn.Require)
		r.Get("/profile", handler.GetProfile)
		r.Put("/profile", handler.UpdateProfile)
		r.Post("/profile/image", handler.UploadProfileImage)
		r.Delete("/account", handler.DeleteAccount)
		r.Get("/stats", handler.Stats)
	})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	user, err := h.userService.GetByID(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	changes, err := req.Changes()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), principal.ID, changes)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	upload, err := readUpload(w, r, h.maxUploadSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer upload.close()
	if !strings.HasPrefix(upload.ContentType, "image/") {
		writeError(w, http.StatusBadRequest, "profile image must be an image")
		return
	}

	user, err := h.userService.UploadProfileImage(r.Context(), principal.ID, upload.Upload)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to upload profile image")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteAccount removes the caller's account and listings.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	if err := h.userService.DeleteAccount(r.Context(), principal.ID); err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	counts, err := h.statsService.ForOwner(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Search lists active individual and agency accounts.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
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

	users, total, err := h.userService.Search(r.Context(), filter, offset, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to search users")
		return
	}
	summaries := make([]types.OwnerSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	writeJSON(w, http.StatusOK, newListResponse(summaries, page, limit, total))
}

func parseUserFilter(r *http.Request) (types.UserFilter, error) {
	filter := types.UserFilter{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Role:  types.Role(strings.TrimSpace(r.URL.Query().Get("userType"))),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return types.UserFilter{}, errInvalidUserType
	}
	return filter, nil
}
