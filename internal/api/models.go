package api

import "github.com/phrazzld/coursehub-api/internal/service/enrollment"

// DefaultCompletionRate is recorded when a completion request omits a rate.
const DefaultCompletionRate = 100.0

// EnrollRequest defines the payload for POST /user/courses/enroll.
type EnrollRequest struct {
	SessionID   int64  `json:"session_id"   validate:"required,gt=0"`
	ApplyReason string `json:"apply_reason" validate:"max=1000"`
}

// ProcessRequest defines the payload for approve and reject.
type ProcessRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// CompleteRequest defines the payload for completing an enrollment.
// Omitted rates default to DefaultCompletionRate.
type CompleteRequest struct {
	AttendanceRate *float64 `json:"attendance_rate" validate:"omitempty,gte=0,lte=100"`
	CompletionRate *float64 `json:"completion_rate" validate:"omitempty,gte=0,lte=100"`
}

// Rates returns the requested rates with defaults applied.
func (c CompleteRequest) Rates() (attendance, completion float64) {
	attendance, completion = DefaultCompletionRate, DefaultCompletionRate
	if c.AttendanceRate != nil {
		attendance = *c.AttendanceRate
	}
	if c.CompletionRate != nil {
		completion = *c.CompletionRate
	}
	return attendance, completion
}

// EnrollmentListResponse wraps a list of enrollments.
type EnrollmentListResponse struct {
	Enrollments []*enrollment.EnrollmentView `json:"enrollments"`
	Count       int                          `json:"count"`
}

func newListResponse(views []*enrollment.EnrollmentView) EnrollmentListResponse {
	if views == nil {
		views = []*enrollment.EnrollmentView{}
	}
	return EnrollmentListResponse{Enrollments: views, Count: len(views)}
}
