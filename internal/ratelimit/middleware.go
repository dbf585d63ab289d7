package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Rule is a fixed-window quota.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
}

func (r Rule) enabled() bool {
	return r.Max > 0 && r.Window > 0
}

// Requests limits every request of a client IP to rule.Max per window.
// Limiter errors let the request through.
func Requests(limiter Limiter, rule Rule, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !rule.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.Name + ":" + clientIP(r)
			count, ttl, err := limiter.Hit(r.Context(), key, rule.Window)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("rule", rule.Name), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			setHeaders(w, rule, count)
			if count > int64(rule.Max) {
				tooManyRequests(w, ttl)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Failures blocks a client IP once rule.Max of its requests have failed
// (status >= 400) inside a window. Successful requests are not counted.
func Failures(limiter Limiter, rule Rule, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !rule.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.Name + ":" + clientIP(r)
			count, ttl, err := limiter.Count(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("rule", rule.Name), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count >= int64(rule.Max) {
				setHeaders(w, rule, count)
				tooManyRequests(w, ttl)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() < http.StatusBadRequest {
				return
			}
			if _, _, err := limiter.Hit(r.Context(), key, rule.Window); err != nil {
				logger.Warn("rate limiter hit failed", zap.String("rule", rule.Name), zap.Error(err))
			}
		})
	}
}

func setHeaders(w http.ResponseWriter, rule Rule, count int64) {
	remaining := int64(rule.Max) - count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Max))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
}

func tooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "too many requests, please try again later",
	})
}

// clientIP expects middleware.RealIP to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
