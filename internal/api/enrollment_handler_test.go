package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/service/auth"
	"github.com/phrazzld/coursehub-api/internal/service/enrollment"
	"github.com/phrazzld/coursehub-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLedger implements enrollment.Ledger with overridable functions.
type mockLedger struct {
	EnrollFn        func(ctx context.Context, userID, sessionID int64, applyReason string) (*enrollment.EnrollmentView, error)
	ApproveFn       func(ctx context.Context, id int64, reason string) (*enrollment.EnrollmentView, error)
	RejectFn        func(ctx context.Context, id int64, reason string) (*enrollment.EnrollmentView, error)
	CancelFn        func(ctx context.Context, userID, id int64, reason string) (*enrollment.EnrollmentView, error)
	CompleteFn      func(ctx context.Context, id int64, attendance, completion float64) (*enrollment.EnrollmentView, error)
	GetFn           func(ctx context.Context, id int64) (*enrollment.EnrollmentView, error)
	ListBySessionFn func(ctx context.Context, sessionID int64, status *domain.EnrollmentStatus) ([]*enrollment.EnrollmentView, error)
}

func (m *mockLedger) Enroll(ctx context.Context, userID, sessionID int64, applyReason string) (*enrollment.EnrollmentView, error) {
	return m.EnrollFn(ctx, userID, sessionID, applyReason)
}

func (m *mockLedger) Approve(ctx context.Context, id int64, reason string) (*enrollment.EnrollmentView, error) {
	return m.ApproveFn(ctx, id, reason)
}

func (m *mockLedger) Reject(ctx context.Context, id int64, reason string) (*enrollment.EnrollmentView, error) {
	return m.RejectFn(ctx, id, reason)
}

func (m *mockLedger) Cancel(ctx context.Context, userID, id int64, reason string) (*enrollment.EnrollmentView, error) {
	return m.CancelFn(ctx, userID, id, reason)
}

func (m *mockLedger) Complete(ctx context.Context, id int64, attendance, completion float64) (*enrollment.EnrollmentView, error) {
	return m.CompleteFn(ctx, id, attendance, completion)
}

func (m *mockLedger) Get(ctx context.Context, id int64) (*enrollment.EnrollmentView, error) {
	return m.GetFn(ctx, id)
}

func (m *mockLedger) ListBySession(
	ctx context.Context,
	sessionID int64,
	status *domain.EnrollmentStatus,
) ([]*enrollment.EnrollmentView, error) {
	return m.ListBySessionFn(ctx, sessionID, status)
}

// mockQuery implements enrollment.QueryService.
type mockQuery struct {
	InProgressFn func(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error)
	CompletedFn  func(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error)
	ListByUserFn func(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error)
}

func (m *mockQuery) InProgress(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error) {
	return m.InProgressFn(ctx, userID)
}

func (m *mockQuery) Completed(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error) {
	return m.CompletedFn(ctx, userID)
}

func (m *mockQuery) ListByUser(ctx context.Context, userID int64) ([]*enrollment.EnrollmentView, error) {
	return m.ListByUserFn(ctx, userID)
}

func newView(id, userID int64, status domain.EnrollmentStatus) *enrollment.EnrollmentView {
	return &enrollment.EnrollmentView{
		Enrollment: domain.Enrollment{ID: id, UserID: userID, SessionID: 100, Status: status},
		CourseID:   10,
		CourseName: "Go in Practice",
	}
}

// newTestRouter mounts the handler the same way the server does, minus
// authentication: callers are injected directly.
func newTestRouter(h *EnrollmentHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/user/courses/in-progress", h.ListInProgress)
	r.Get("/user/courses/completed", h.ListCompleted)
	r.Get("/user/courses/enrollments", h.ListMine)
	r.Get("/user/courses/enrollments/{id}", h.Get)
	r.Post("/user/courses/enroll", h.Enroll)
	r.Delete("/user/courses/{id}", h.Cancel)
	r.Post("/user/courses/{id}/approve", h.Approve)
	r.Post("/user/courses/{id}/reject", h.Reject)
	r.Post("/user/courses/{id}/complete", h.Complete)
	r.Get("/admin/sessions/{id}/enrollments", h.ListSessionEnrollments)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, caller *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if caller != nil {
		req = req.WithContext(shared.WithCaller(req.Context(), caller))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

var (
	userCaller  = &auth.Claims{UserID: 1, Role: auth.RoleUser}
	otherCaller = &auth.Claims{UserID: 2, Role: auth.RoleUser}
	adminCaller = &auth.Claims{UserID: 99, Role: auth.RoleAdmin}
)

func TestNewEnrollmentHandler_NilLogger(t *testing.T) {
	assert.Panics(t, func() {
		NewEnrollmentHandler(&mockLedger{}, &mockQuery{}, nil)
	})
}

func TestEnrollmentHandler_Enroll(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		var gotUser, gotSession int64
		var gotReason string
		ledger := &mockLedger{
			EnrollFn: func(_ context.Context, userID, sessionID int64, applyReason string) (*enrollment.EnrollmentView, error) {
				gotUser, gotSession, gotReason = userID, sessionID, applyReason
				return newView(5, userID, domain.StatusApproved), nil
			},
		}
		router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

		rr := doRequest(t, router, http.MethodPost, "/user/courses/enroll",
			EnrollRequest{SessionID: 100, ApplyReason: "career change"}, userCaller)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, int64(1), gotUser)
		assert.Equal(t, int64(100), gotSession)
		assert.Equal(t, "career change", gotReason)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, float64(5), body["id"])
		assert.Equal(t, "APPROVED", body["status"])
		assert.Equal(t, "Go in Practice", body["course_name"])
	})

	errCases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"already enrolled", domain.ErrAlreadyEnrolled, http.StatusConflict, "already enrolled in this session"},
		{"capacity exceeded", domain.ErrCapacityExceeded, http.StatusUnprocessableEntity, "capacity exceeded"},
		{"recruitment ended", domain.ErrRecruitmentEnded, http.StatusUnprocessableEntity, "recruitment has ended"},
		{"unknown session", enrollment.NewServiceError("enroll", "", store.ErrSessionNotFound), http.StatusNotFound, "Course session not found"},
		{"unknown user", enrollment.NewServiceError("enroll", "", store.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{"retries exhausted", enrollment.NewServiceError("enroll", "", store.ErrConcurrencyConflict), http.StatusConflict, "The enrollment was modified concurrently, please retry"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &mockLedger{
				EnrollFn: func(context.Context, int64, int64, string) (*enrollment.EnrollmentView, error) {
					return nil, tc.err
				},
			}
			router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

			rr := doRequest(t, router, http.MethodPost, "/user/courses/enroll", EnrollRequest{SessionID: 100}, userCaller)

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Equal(t, tc.wantMsg, decodeError(t, rr))
		})
	}

	t.Run("bad request", func(t *testing.T) {
		router := newTestRouter(NewEnrollmentHandler(&mockLedger{}, &mockQuery{}, slog.Default()))

		tests := []struct {
			name string
			body any
		}{
			{"missing session", map[string]any{"apply_reason": "x"}},
			{"negative session", map[string]any{"session_id": -1}},
			{"unknown field", map[string]any{"session_id": 1, "sessionId": 1}},
			{"malformed json", "{"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				rr := doRequest(t, router, http.MethodPost, "/user/courses/enroll", tc.body, userCaller)
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			})
		}
	})

	t.Run("no caller", func(t *testing.T) {
		router := newTestRouter(NewEnrollmentHandler(&mockLedger{}, &mockQuery{}, slog.Default()))
		rr := doRequest(t, router, http.MethodPost, "/user/courses/enroll", EnrollRequest{SessionID: 1}, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestEnrollmentHandler_Cancel(t *testing.T) {
	t.Run("passes caller and reason", func(t *testing.T) {
		var gotUser, gotID int64
		var gotReason string
		ledger := &mockLedger{
			CancelFn: func(_ context.Context, userID, id int64, reason string) (*enrollment.EnrollmentView, error) {
				gotUser, gotID, gotReason = userID, id, reason
				return newView(id, userID, domain.StatusCancelled), nil
			},
		}
		router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

		rr := doRequest(t, router, http.MethodDelete, "/user/courses/7?reason=schedule+clash", nil, userCaller)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(1), gotUser)
		assert.Equal(t, int64(7), gotID)
		assert.Equal(t, "schedule clash", gotReason)
	})

	t.Run("not owner", func(t *testing.T) {
		ledger := &mockLedger{
			CancelFn: func(context.Context, int64, int64, string) (*enrollment.EnrollmentView, error) {
				return nil, domain.ErrNotEnrollmentOwner
			},
		}
		router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

		rr := doRequest(t, router, http.MethodDelete, "/user/courses/7", nil, otherCaller)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "only your own enrollment can be cancelled", decodeError(t, rr))
	})

	t.Run("invalid id", func(t *testing.T) {
		router := newTestRouter(NewEnrollmentHandler(&mockLedger{}, &mockQuery{}, slog.Default()))
		for _, path := range []string{"/user/courses/abc", "/user/courses/0", "/user/courses/-3"} {
			rr := doRequest(t, router, http.MethodDelete, path, nil, userCaller)
			assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		}
	})
}

func TestEnrollmentHandler_ApproveReject(t *testing.T) {
	var approved, rejected []string
	ledger := &mockLedger{
		ApproveFn: func(_ context.Context, id int64, reason string) (*enrollment.EnrollmentView, error) {
			if id == 404 {
				return nil, enrollment.NewServiceError("approve", "", store.ErrEnrollmentNotFound)
			}
			if id == 409 {
				return nil, domain.ErrApproveNotPending
			}
			approved = append(approved, reason)
			return newView(id, 1, domain.StatusApproved), nil
		},
		RejectFn: func(_ context.Context, id int64, reason string) (*enrollment.EnrollmentView, error) {
			rejected = append(rejected, reason)
			return newView(id, 1, domain.StatusRejected), nil
		},
	}
	router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

	rr := doRequest(t, router, http.MethodPost, "/user/courses/3/approve", ProcessRequest{Reason: "welcome"}, adminCaller)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/user/courses/3/approve", nil, adminCaller)
	require.Equal(t, http.StatusOK, rr.Code, "an empty body is allowed")

	rr = doRequest(t, router, http.MethodPost, "/user/courses/4/reject", ProcessRequest{Reason: "prerequisites missing"}, adminCaller)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, []string{"welcome", ""}, approved)
	assert.Equal(t, []string{"prerequisites missing"}, rejected)

	rr = doRequest(t, router, http.MethodPost, "/user/courses/404/approve", nil, adminCaller)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Enrollment not found", decodeError(t, rr))

	rr = doRequest(t, router, http.MethodPost, "/user/courses/409/approve", nil, adminCaller)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "only pending enrollments can be approved", decodeError(t, rr))
}

func TestEnrollmentHandler_Complete(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		wantAttendance float64
		wantCompletion float64
		wantStatus     int
	}{
		{"defaults", nil, 100, 100, http.StatusOK},
		{"explicit rates", map[string]any{"attendance_rate": 80.5, "completion_rate": 90}, 80.5, 90, http.StatusOK},
		{"one rate", map[string]any{"attendance_rate": 0}, 0, 100, http.StatusOK},
		{"out of range", map[string]any{"completion_rate": 101}, 0, 0, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			var gotAttendance, gotCompletion float64
			ledger := &mockLedger{
				CompleteFn: func(_ context.Context, id int64, attendance, completion float64) (*enrollment.EnrollmentView, error) {
					called = true
					gotAttendance, gotCompletion = attendance, completion
					v := newView(id, 1, domain.StatusApproved)
					v.Completed = true
					return v, nil
				},
			}
			router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

			rr := doRequest(t, router, http.MethodPost, "/user/courses/9/complete", tc.body, adminCaller)

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus != http.StatusOK {
				assert.False(t, called)
				return
			}
			assert.Equal(t, tc.wantAttendance, gotAttendance)
			assert.Equal(t, tc.wantCompletion, gotCompletion)
		})
	}

	t.Run("not approved", func(t *testing.T) {
		ledger := &mockLedger{
			CompleteFn: func(context.Context, int64, float64, float64) (*enrollment.EnrollmentView, error) {
				return nil, domain.ErrCompleteNotApproved
			},
		}
		router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

		rr := doRequest(t, router, http.MethodPost, "/user/courses/9/complete", nil, adminCaller)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "only approved enrollments can be completed", decodeError(t, rr))
	})
}

func TestEnrollmentHandler_Get(t *testing.T) {
	ledger := &mockLedger{
		GetFn: func(_ context.Context, id int64) (*enrollment.EnrollmentView, error) {
			if id == 8 {
				return nil, enrollment.NewServiceError("get", "", store.ErrEnrollmentNotFound)
			}
			return newView(id, 1, domain.StatusPending), nil
		},
	}
	router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

	tests := []struct {
		name       string
		path       string
		caller     *auth.Claims
		wantStatus int
	}{
		{"owner", "/user/courses/enrollments/3", userCaller, http.StatusOK},
		{"admin", "/user/courses/enrollments/3", adminCaller, http.StatusOK},
		{"other user", "/user/courses/enrollments/3", otherCaller, http.StatusNotFound},
		{"missing", "/user/courses/enrollments/8", userCaller, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodGet, tc.path, nil, tc.caller)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestEnrollmentHandler_Lists(t *testing.T) {
	var calls []string
	record := func(name string, views []*enrollment.EnrollmentView) func(context.Context, int64) ([]*enrollment.EnrollmentView, error) {
		return func(_ context.Context, userID int64) ([]*enrollment.EnrollmentView, error) {
			calls = append(calls, name)
			if userID != userCaller.UserID {
				return nil, enrollment.NewServiceError(name, "", store.ErrUserNotFound)
			}
			return views, nil
		}
	}
	query := &mockQuery{
		InProgressFn: record("in-progress", []*enrollment.EnrollmentView{newView(1, 1, domain.StatusApproved)}),
		CompletedFn:  record("completed", nil),
		ListByUserFn: record("all", []*enrollment.EnrollmentView{
			newView(1, 1, domain.StatusApproved),
			newView(2, 1, domain.StatusCancelled),
		}),
	}
	router := newTestRouter(NewEnrollmentHandler(&mockLedger{}, query, slog.Default()))

	tests := []struct {
		path      string
		wantCount int
	}{
		{"/user/courses/in-progress", 1},
		{"/user/courses/completed", 0},
		{"/user/courses/enrollments", 2},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodGet, tc.path, nil, userCaller)
			require.Equal(t, http.StatusOK, rr.Code)

			var resp EnrollmentListResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCount, resp.Count)
			assert.Len(t, resp.Enrollments, tc.wantCount)
		})
	}
	assert.Equal(t, []string{"in-progress", "completed", "all"}, calls)

	t.Run("empty list is an array", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/user/courses/completed", nil, userCaller)
		assert.Contains(t, rr.Body.String(), `"enrollments":[]`)
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/user/courses/in-progress", nil, otherCaller)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestEnrollmentHandler_ListSessionEnrollments(t *testing.T) {
	var gotStatus *domain.EnrollmentStatus
	var gotSession int64
	ledger := &mockLedger{
		ListBySessionFn: func(_ context.Context, sessionID int64, status *domain.EnrollmentStatus) ([]*enrollment.EnrollmentView, error) {
			gotSession, gotStatus = sessionID, status
			return []*enrollment.EnrollmentView{newView(1, 1, domain.StatusPending)}, nil
		},
	}
	router := newTestRouter(NewEnrollmentHandler(ledger, &mockQuery{}, slog.Default()))

	rr := doRequest(t, router, http.MethodGet, "/admin/sessions/100/enrollments", nil, adminCaller)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(100), gotSession)
	assert.Nil(t, gotStatus)

	rr = doRequest(t, router, http.MethodGet, "/admin/sessions/100/enrollments?status=PENDING", nil, adminCaller)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotStatus)
	assert.Equal(t, domain.StatusPending, *gotStatus)

	rr = doRequest(t, router, http.MethodGet, "/admin/sessions/100/enrollments?status=WAITLISTED", nil, adminCaller)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid status filter", decodeError(t, rr))
}
