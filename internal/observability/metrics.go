// Package observability exposes Prometheus metrics for the HTTP surface
// and the enrollment ledger.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/coursehub-api/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics in a private
// registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	retries         *prometheus.CounterVec
}

// NewMetrics creates the registry and registers every metric.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursehub_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coursehub_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursehub_enrollment_transitions_total",
		Help: "Committed enrollment lifecycle transitions.",
	}, []string{"transition"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursehub_enrollment_conflict_retries_total",
		Help: "Units of work rerun after a concurrent modification.",
	}, []string{"operation"})
	registry.MustRegister(requests, duration, transitions, retries)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		retries:         retries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// HandleEvent counts a committed transition. It implements
// events.EventHandler and never fails.
func (m *Metrics) HandleEvent(_ context.Context, event *events.EnrollmentEvent) error {
	m.transitions.WithLabelValues(strings.TrimPrefix(string(event.Type), "enrollment.")).Inc()
	return nil
}

// ObserveRetry counts a conflict retry of operation.
func (m *Metrics) ObserveRetry(operation string, _ int) {
	m.retries.WithLabelValues(operation).Inc()
}

// Registerer exposes the registry for additional metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

var _ events.EventHandler = (*Metrics)(nil)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
