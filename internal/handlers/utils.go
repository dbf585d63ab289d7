package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/moderation"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/internal/store"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

const (
	defaultPage     = 1
	defaultLimit    = 20
	maxLimit        = 100
	maxPage         = 1_000_000
	maxJSONBodySize = 1 << 20
)

// ErrorResponse is the error payload. Fields carries per-field validation
// messages keyed by JSON name.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ListResponse is the paginated list payload.
type ListResponse[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func newListResponse[T any](items []T, page, limit, total int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return ListResponse[T]{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    (page-1)*limit+len(items) < total,
		HasPrev:    page > 1,
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeValidationError reports ozzo field errors as a 400. Other errors
// fall back to a plain bad request.
func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields := make(map[string]string, len(fieldErrs))
	for name, fieldErr := range fieldErrs {
		if fieldErr != nil {
			fields[name] = fieldErr.Error()
		}
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
}

// writeServiceError maps domain errors to statuses. Unknown errors are
// logged and reported as fallback with a 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, notFound, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, "account is disabled")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrMalformedCredential),
		errors.Is(err, auth.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "admin access required")
	case errors.Is(err, moderation.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRoleNotAllowed),
		errors.Is(err, services.ErrSelfReview):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyReviewed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a JSON body of at most maxJSONBodySize bytes. Unknown
// fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid request")
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPage {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseOptionalFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.New("invalid " + name)
	}
	return &value, nil
}

func parseOptionalInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &value, nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
