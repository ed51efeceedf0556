package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/service/enrollment"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// EnrollmentHandler handles enrollment-related HTTP requests.
type EnrollmentHandler struct {
	ledger enrollment.Ledger
	query  enrollment.QueryService
	logger *slog.Logger
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(
	ledger enrollment.Ledger,
	query enrollment.QueryService,
	logger *slog.Logger,
) *EnrollmentHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for EnrollmentHandler")
	}

	return &EnrollmentHandler{
		ledger: ledger,
		query:  query,
		logger: logger.With(slog.String("component", "enrollment_handler")),
	}
}

// ListInProgress handles GET /user/courses/in-progress.
func (h *EnrollmentHandler) ListInProgress(w http.ResponseWriter, r *http.Request) {
	h.listForCaller(w, r, h.query.InProgress)
}

// ListCompleted handles GET /user/courses/completed.
func (h *EnrollmentHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	h.listForCaller(w, r, h.query.Completed)
}

// ListMine handles GET /user/courses/enrollments.
func (h *EnrollmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.listForCaller(w, r, h.query.ListByUser)
}

func (h *EnrollmentHandler) listForCaller(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	caller, ok := requireCaller(w, r, log)
	if !ok {
		return
	}

	views, err := list(r.Context(), caller.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newListResponse(views))
}

// Get handles GET /user/courses/enrollments/{id}. Users only see their
// own enrollments; administrators see all.
func (h *EnrollmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	caller, id, ok := requireCallerAndPathID(w, r, "id", log)
	if !ok {
		return
	}

	view, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if view.UserID != caller.UserID && !caller.IsAdmin() {
		log.Debug("enrollment belongs to another user", slog.Int64("enrollment_id", id))
		HandleAPIError(w, r, store.ErrEnrollmentNotFound, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// Enroll handles POST /user/courses/enroll.
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	caller, ok := requireCaller(w, r, log)
	if !ok {
		return
	}

	var req EnrollRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.ledger.Enroll(r.Context(), caller.UserID, req.SessionID, req.ApplyReason)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("enrollment requested",
		slog.Int64("enrollment_id", view.ID),
		slog.Int64("session_id", req.SessionID),
		slog.String("status", string(view.Status)))
	shared.RespondWithJSON(w, r, http.StatusCreated, view)
}

// Cancel handles DELETE /user/courses/{id}?reason=.
func (h *EnrollmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	caller, id, ok := requireCallerAndPathID(w, r, "id", log)
	if !ok {
		return
	}

	view, err := h.ledger.Cancel(r.Context(), caller.UserID, id, r.URL.Query().Get("reason"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// Approve handles POST /user/courses/{id}/approve.
func (h *EnrollmentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, h.ledger.Approve)
}

// Reject handles POST /user/courses/{id}/reject.
func (h *EnrollmentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, h.ledger.Reject)
}

func (h *EnrollmentHandler) process(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, enrollmentID int64, reason string) (*enrollment.EnrollmentView, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	_, id, ok := requireCallerAndPathID(w, r, "id", log)
	if !ok {
		return
	}

	var req ProcessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	view, err := decide(r.Context(), id, req.Reason)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// Complete handles POST /user/courses/{id}/complete.
func (h *EnrollmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	_, id, ok := requireCallerAndPathID(w, r, "id", log)
	if !ok {
		return
	}

	var req CompleteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	attendance, completion := req.Rates()
	view, err := h.ledger.Complete(r.Context(), id, attendance, completion)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// ListSessionEnrollments handles GET /admin/sessions/{id}/enrollments?status=.
func (h *EnrollmentHandler) ListSessionEnrollments(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	_, sessionID, ok := requireCallerAndPathID(w, r, "id", log)
	if !ok {
		return
	}

	var status *domain.EnrollmentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			HandleAPIError(w, r, err, "Invalid status filter")
			return
		}
		status = &parsed
	}

	views, err := h.ledger.ListBySession(r.Context(), sessionID, status)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newListResponse(views))
}
