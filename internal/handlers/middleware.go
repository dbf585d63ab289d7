package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/metrics"
	"github.com/darigo/apiserver/types"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

func withPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, principal)
}

// principalFromContext returns the authenticated actor set by Authenticator.
func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	principal, ok := ctx.Value(contextPrincipalKey).(auth.Principal)
	return principal, ok && principal.ID != ""
}

// Authenticator runs every protected request through the resolver and,
// for admin routes, the role policy.
type Authenticator struct {
	resolver *auth.Resolver
	policy   *auth.Policy
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewAuthenticator(resolver *auth.Resolver, policy *auth.Policy, m *metrics.Metrics, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		resolver: resolver,
		policy:   policy,
		metrics:  m,
		logger:   logger,
	}
}

// Require rejects requests without a valid credential of an active user.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.reject(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// Optional attaches the principal when the credential resolves and treats
// the request as anonymous otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := a.resolver.Resolve(r.Context(), header)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin must run after Require. The role is read from the user
// store on every call.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalFromContext(r.Context())
		if !ok {
			a.reject(w, auth.ErrUnauthenticated)
			return
		}
		user, err := a.policy.RequireRole(r.Context(), principal, types.RoleAdmin)
		if err != nil {
			a.reject(w, err)
			return
		}
		principal.Role = user.Role
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		a.metrics.ObserveAuthFailure("expired")
		writeError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrAccountDisabled):
		a.metrics.ObserveAuthFailure("disabled")
		writeError(w, http.StatusUnauthorized, "account is disabled")
	case errors.Is(err, auth.ErrForbidden):
		a.metrics.ObserveAuthFailure("forbidden")
		writeError(w, http.StatusForbidden, "admin access required")
	case errors.Is(err, auth.ErrMalformedCredential):
		a.metrics.ObserveAuthFailure("malformed")
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrUnknownUser):
		a.metrics.ObserveAuthFailure("unknown_user")
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrUnauthenticated):
		a.metrics.ObserveAuthFailure("unauthenticated")
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		a.logger.Error("authentication failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}
