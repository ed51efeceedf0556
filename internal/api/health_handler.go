package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checkers map[string]Checker
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checkers are run by Ready.
func NewHealthHandler(checkers map[string]Checker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		checkers: checkers,
		timeout:  2 * time.Second,
		logger:   logger.With(slog.String("component", "health_handler")),
	}
}

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /ready. It answers 503 if any dependency is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checkers[name](ctx); err != nil {
			log.Warn("readiness check failed",
				slog.String("check", name),
				slog.String("error", err.Error()))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	shared.RespondWithJSON(w, r, status, resp)
}
