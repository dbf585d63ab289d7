package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/properties/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/properties/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	got := counterValue(t, m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/properties/{id}", "404"))
	assert.Equal(t, 2.0, got)
}

func TestObserveHelpers(t *testing.T) {
	m := New()
	m.ObserveModeration("approved")
	m.ObserveEvent("property.submitted", nil)
	m.ObserveEvent("property.submitted", errors.New("down"))
	m.ObserveAuthFailure("token_expired")

	assert.Equal(t, 1.0, counterValue(t, m.ModerationTotal.WithLabelValues("approved")))
	assert.Equal(t, 1.0, counterValue(t, m.EventsPublished.WithLabelValues("property.submitted", "ok")))
	assert.Equal(t, 1.0, counterValue(t, m.EventsPublished.WithLabelValues("property.submitted", "error")))
	assert.Equal(t, 1.0, counterValue(t, m.AuthFailuresTotal.WithLabelValues("token_expired")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveModeration("approved") })
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveModeration("rejected")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "darigo_moderation_decisions_total")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}
