package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/coursehub-api/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/user/courses/enrollments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user/courses/enrollments/7", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/v1/user/courses/enrollments/{id}", "404"))
	assert.Equal(t, float64(2), got)
}

func TestEnrollmentCounters(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	require.NoError(t, m.HandleEvent(ctx, &events.EnrollmentEvent{Type: events.EnrollmentApproved}))
	require.NoError(t, m.HandleEvent(ctx, &events.EnrollmentEvent{Type: events.EnrollmentApproved}))
	require.NoError(t, m.HandleEvent(ctx, &events.EnrollmentEvent{Type: events.EnrollmentCancelled}))
	m.ObserveRetry("approve", 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("approved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("cancelled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retries.WithLabelValues("approve")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveRetry("enroll", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coursehub_enrollment_conflict_retries_total{operation="enroll"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}
