package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler provides registration, login and token endpoints.
type AuthHandler struct {
	userService *services.UserService
	resolver    *auth.Resolver
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, resolver *auth.Resolver, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		resolver:    resolver,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router. failureLimit
// guards the credential endpoints and may be nil.
func AuthRouter(r chi.Router, handler *AuthHandler, authn *Authenticator, failureLimit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if failureLimit != nil {
			r.Use(failureLimit)
		}
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
		r.Post("/verify-token", handler.VerifyToken)
	})
	r.With(authn.Require).Get("/me", handler.Me)
}

// Register creates an individual or agency account and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	reg, err := req.Registration()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.userService.Register(r.Context(), reg)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeServiceError(w, h.logger, err, "user not found", "failed to create user")
		return
	}

	h.logger.Info("user registered", zap.String("user_id", session.User.ID), zap.String("role", string(session.User.Role)))
	writeJSON(w, http.StatusCreated, AuthResponse{Token: session.Token, User: session.User})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	session, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "invalid email or password", "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: session.Token, User: session.User})
}

// VerifyToken resolves a bare token the same way protected routes do and
// returns its user.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	principal, err := h.resolver.ResolveToken(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err, "unauthorized", "failed to verify token")
		return
	}
	user, err := h.userService.GetByID(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, h.logger, err, "user not found", "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
