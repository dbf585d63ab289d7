package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "darigo"

// Metrics holds the API's Prometheus collectors on a private registry.
type Metrics struct {
	Registry            *prometheus.Registry
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ModerationTotal     *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	AuthFailuresTotal   *prometheus.CounterVec
}

// New registers all collectors, including Go runtime and process metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ModerationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Property status transitions by target status.",
		}, []string{"status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published by channel and outcome.",
		}, []string{"channel", "outcome"}),
		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected authentication attempts by reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ModerationTotal,
		m.EventsPublished,
		m.AuthFailuresTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request counts and latency. Routes are labelled by
// their chi pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveModeration counts a status transition.
func (m *Metrics) ObserveModeration(status string) {
	if m == nil {
		return
	}
	m.ModerationTotal.WithLabelValues(status).Inc()
}

// ObserveEvent counts a publish attempt.
func (m *Metrics) ObserveEvent(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(channel, outcome).Inc()
}

// ObserveAuthFailure counts a rejected authentication.
func (m *Metrics) ObserveAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// EventPublisher matches the services' event sink.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, payload any) error
}

type instrumentedPublisher struct {
	next    EventPublisher
	metrics *Metrics
}

// InstrumentPublisher counts every publish made through next.
func (m *Metrics) InstrumentPublisher(next EventPublisher) EventPublisher {
	return &instrumentedPublisher{next: next, metrics: m}
}

func (p *instrumentedPublisher) PublishEvent(ctx context.Context, channel string, payload any) error {
	err := p.next.PublishEvent(ctx, channel, payload)
	p.metrics.ObserveEvent(channel, err)
	return err
}
