package domain

import "time"

// SessionStatus is the catalog's scheduling state of a course session.
type SessionStatus string

// Possible session status values
const (
	SessionUpcoming   SessionStatus = "UPCOMING"
	SessionRecruiting SessionStatus = "RECRUITING"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
)

// SessionSnapshot is a point-in-time view of a course session together
// with the capacity of its owning course. The ledger never mutates it
// directly; seat counters change only through the catalog store.
type SessionSnapshot struct {
	SessionID   int64         `json:"session_id"`
	CourseID    int64         `json:"course_id"`
	SessionName string        `json:"session_name"`
	CourseName  string        `json:"course_name"`
	Status      SessionStatus `json:"status"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	RecruitmentStartAt *time.Time `json:"recruitment_start_at,omitempty"`
	RecruitmentEndAt   *time.Time `json:"recruitment_end_at,omitempty"`

	// MaxEnrollment is the course-wide seat cap; nil means unlimited.
	MaxEnrollment         *int `json:"max_enrollment,omitempty"`
	CurrentEnrollment     int  `json:"current_enrollment"`
	CourseEnrollmentCount int  `json:"course_enrollment_count"`
}

// CheckRecruitmentWindow fails when now falls outside the configured
// recruitment window. Unset bounds are open.
func (s *SessionSnapshot) CheckRecruitmentWindow(now time.Time) error {
	if s.RecruitmentStartAt != nil && now.Before(*s.RecruitmentStartAt) {
		return ErrRecruitmentNotStarted
	}
	if s.RecruitmentEndAt != nil && now.After(*s.RecruitmentEndAt) {
		return ErrRecruitmentEnded
	}
	return nil
}

// CheckCapacity fails when the session has no free seat left.
func (s *SessionSnapshot) CheckCapacity() error {
	if s.MaxEnrollment != nil && s.CurrentEnrollment >= *s.MaxEnrollment {
		return ErrCapacityExceeded
	}
	return nil
}
