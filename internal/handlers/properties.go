package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/metrics"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	formFieldFile    = "file"
	formFieldKind    = "kind"
	formFieldCaption = "caption"
	formFieldIsMain  = "isMain"
)

// PropertyHandler provides HTTP handlers for listings.
type PropertyHandler struct {
	propertyService *services.PropertyService
	metrics         *metrics.Metrics
	logger          *zap.Logger
	maxUploadSize   int64
}

func NewPropertyHandler(propertyService *services.PropertyService, m *metrics.Metrics, logger *zap.Logger, maxUploadSize int64) *PropertyHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &PropertyHandler{
		propertyService: propertyService,
		metrics:         m,
		logger:          logger,
		maxUploadSize:   maxUploadSize,
	}
}

// PropertyRouter registers listing routes on the given router.
func PropertyRouter(r chi.Router, handler *PropertyHandler, authn *Authenticator) {
	r.Get("/", handler.ListProperties)
	r.With(authn.Require).Post("/", handler.CreateProperty)
	r.With(authn.Require).Get("/user/my-properties", handler.MyProperties)
	r.Route("/{propertyID}", func(r chi.Router) {
		r.With(authn.Optional).Get("/", handler.GetProperty)
		r.Group(func(r chi.Router) {
			r.Use(authn.Require)
			r.Put("/", handler.UpdateProperty)
			r.Delete("/", handler.DeleteProperty)
			r.Patch("/close", handler.CloseProperty)
			r.Post("/media", handler.UploadMedia)
			r.Post("/reviews", handler.AddReview)
		})
	})
}

func (h *PropertyHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parsePropertyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.propertyService.ListPublic(r.Context(), filter, offset, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to list properties")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	var viewer *auth.Principal
	if principal, ok := principalFromContext(r.Context()); ok {
		viewer = &principal
	}

	property, err := h.propertyService.Get(r.Context(), chi.URLParam(r, "propertyID"), viewer)
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to fetch property")
		return
	}
	writeJSON(w, http.StatusOK, property)
}

func (h *PropertyHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	var req PropertyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := req.Validate(true); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.propertyService.Create(r.Context(), principal, req.Draft())
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to create property")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *PropertyHandler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	var req PropertyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := req.Validate(false); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.propertyService.Update(r.Context(), principal, chi.URLParam(r, "propertyID"), req.Patch())
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to update property")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PropertyHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	if err := h.propertyService.Delete(r.Context(), principal, chi.URLParam(r, "propertyID")); err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to delete property")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PropertyHandler) MyProperties(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.propertyService.ListByOwner(r.Context(), principal.ID, offset, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to list properties")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *PropertyHandler) CloseProperty(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	var req CloseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.propertyService.Close(r.Context(), principal, chi.URLParam(r, "propertyID"), req.Status, req.SoldTo)
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to close property")
		return
	}
	h.metrics.ObserveModeration(string(updated.Status))
	writeJSON(w, http.StatusOK, updated)
}

func (h *PropertyHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.propertyService.AddReview(r.Context(), principal, chi.URLParam(r, "propertyID"), req.Rating, sanitize(req.Comment))
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to add review")
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

// UploadMedia accepts a multipart form with a single image or video file.
func (h *PropertyHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	upload, err := readUpload(w, r, h.maxUploadSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer upload.close()

	kind := types.MediaKind(strings.ToLower(strings.TrimSpace(r.FormValue(formFieldKind))))
	if kind == "" {
		kind = types.MediaImage
	}
	if kind != types.MediaImage && kind != types.MediaVideo {
		writeError(w, http.StatusBadRequest, "kind must be image or video")
		return
	}
	if !strings.HasPrefix(upload.ContentType, string(kind)+"/") {
		writeError(w, http.StatusBadRequest, "file type does not match kind")
		return
	}
	isMain, _ := strconv.ParseBool(r.FormValue(formFieldIsMain))

	updated, err := h.propertyService.UploadMedia(r.Context(), principal, chi.URLParam(r, "propertyID"), services.MediaUpload{
		Upload:  upload.Upload,
		Kind:    kind,
		Caption: sanitize(r.FormValue(formFieldCaption)),
		IsMain:  isMain,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "property not found", "failed to upload media")
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

var propertySorts = map[string]bool{
	types.SortCreatedAt: true,
	types.SortPrice:     true,
	types.SortArea:      true,
	types.SortViews:     true,
}

func parsePropertyFilter(r *http.Request) (types.PropertyFilter, error) {
	q := r.URL.Query()
	filter := types.PropertyFilter{
		Type:     types.ListingType(strings.TrimSpace(q.Get("type"))),
		Category: types.Category(strings.TrimSpace(q.Get("category"))),
		City:     strings.TrimSpace(q.Get("city")),
		District: strings.TrimSpace(q.Get("district")),
		Features: parseList(q.Get("features")),
		Query:    strings.TrimSpace(q.Get("q")),
		SortBy:   types.SortCreatedAt,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return types.PropertyFilter{}, errors.New("invalid type")
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return types.PropertyFilter{}, errors.New("invalid category")
	}

	var err error
	if filter.MinPrice, err = parseOptionalFloat(r, "minPrice"); err != nil {
		return types.PropertyFilter{}, err
	}
	if filter.MaxPrice, err = parseOptionalFloat(r, "maxPrice"); err != nil {
		return types.PropertyFilter{}, err
	}
	if filter.MinArea, err = parseOptionalFloat(r, "minArea"); err != nil {
		return types.PropertyFilter{}, err
	}
	if filter.MaxArea, err = parseOptionalFloat(r, "maxArea"); err != nil {
		return types.PropertyFilter{}, err
	}
	if filter.Rooms, err = parseOptionalInt(r, "rooms"); err != nil {
		return types.PropertyFilter{}, err
	}
	if filter.Bathrooms, err = parseOptionalInt(r, "bathrooms"); err != nil {
		return types.PropertyFilter{}, err
	}

	if sortBy := strings.TrimSpace(q.Get("sortBy")); sortBy != "" {
		if !propertySorts[sortBy] {
			return types.PropertyFilter{}, errors.New("invalid sortBy")
		}
		filter.SortBy = sortBy
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("sortOrder"))) {
	case "", "desc":
	case "asc":
		filter.SortAsc = true
	default:
		return types.PropertyFilter{}, errors.New("invalid sortOrder")
	}
	return filter, nil
}
