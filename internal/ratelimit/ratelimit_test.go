package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClockedLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	now := start
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	l, now := newClockedLimiter(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := int64(1); i <= 3; i++ {
		count, ttl, err := l.Hit(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Equal(t, time.Minute, ttl)
	}

	*now = now.Add(30 * time.Second)
	count, ttl, err := l.Count(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, 30*time.Second, ttl)

	*now = now.Add(31 * time.Second)
	count, _, err = l.Count(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, _, err = l.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRequestsMiddleware(t *testing.T) {
	rule := Rule{Name: "api", Max: 2, Window: time.Minute}
	h := Requests(NewMemoryLimiter(), rule, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFailuresMiddlewareCountsOnlyFailures(t *testing.T) {
	rule := Rule{Name: "auth", Max: 2, Window: 15 * time.Minute}
	status := http.StatusOK
	h := Failures(NewMemoryLimiter(), rule, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do())
	}

	status = http.StatusUnauthorized
	assert.Equal(t, http.StatusUnauthorized, do())
	assert.Equal(t, http.StatusUnauthorized, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	status = http.StatusOK
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestDisabledRulePassesThrough(t *testing.T) {
	called := 0
	h := Requests(nil, Rule{Name: "api", Max: 1, Window: time.Minute}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	assert.Equal(t, 3, called)
}
