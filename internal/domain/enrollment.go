package domain

import (
	"errors"
	"fmt"
	"time"
)

// Common validation errors for Enrollment
var (
	ErrEmptyEnrollmentUserID    = errors.New("enrollment user ID cannot be empty")
	ErrEmptyEnrollmentSessionID = errors.New("enrollment session ID cannot be empty")
	ErrInvalidEnrollmentStatus  = errors.New("invalid enrollment status")
)

// Enrollment is a user's request to occupy a seat in a course session,
// tracked through its own lifecycle. UserID and SessionID never change
// after creation. Enrollments are never deleted.
type Enrollment struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	SessionID int64            `json:"session_id"`
	Status    EnrollmentStatus `json:"status"`

	ApplyReason string    `json:"apply_reason,omitempty"`
	AppliedAt   time.Time `json:"applied_at"`

	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	ProcessReason string     `json:"process_reason,omitempty"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	AttendanceRate *float64   `json:"attendance_rate,omitempty"`
	CompletionRate *float64   `json:"completion_rate,omitempty"`

	// Version is bumped by the store on every update and used to detect
	// concurrent writers.
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEnrollment creates a PENDING enrollment applied at now.
// The ID is assigned by the store.
func NewEnrollment(userID, sessionID int64, applyReason string, now time.Time) (*Enrollment, error) {
	now = now.UTC()
	e := &Enrollment{
		UserID:      userID,
		SessionID:   sessionID,
		Status:      StatusPending,
		ApplyReason: applyReason,
		AppliedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// Validate checks if the Enrollment has valid data.
func (e *Enrollment) Validate() error {
	if e.UserID <= 0 {
		return ErrEmptyEnrollmentUserID
	}

	if e.SessionID <= 0 {
		return ErrEmptyEnrollmentSessionID
	}

	if !e.Status.IsValid() {
		return ErrInvalidEnrollmentStatus
	}

	if e.Completed && e.Status != StatusApproved {
		return fmt.Errorf("%w: completed enrollment must be approved", ErrValidation)
	}

	return nil
}

// IsInProgress reports whether the holder is attending the session.
func (e *Enrollment) IsInProgress() bool {
	return e.Status == StatusApproved && !e.Completed
}

// IsCompleted reports whether the holder finished the session.
func (e *Enrollment) IsCompleted() bool {
	return e.Status == StatusApproved && e.Completed
}

// Approve moves a pending enrollment to APPROVED. Seat accounting is the
// caller's responsibility.
func (e *Enrollment) Approve(reason string, now time.Time) error {
	next, err := e.Status.Next(TransitionApprove)
	if err != nil {
		return err
	}
	e.process(next, reason, now)
	return nil
}

// Reject moves a pending enrollment to REJECTED.
func (e *Enrollment) Reject(reason string, now time.Time) error {
	next, err := e.Status.Next(TransitionReject)
	if err != nil {
		return err
	}
	e.process(next, reason, now)
	return nil
}

func (e *Enrollment) process(next EnrollmentStatus, reason string, now time.Time) {
	now = now.UTC()
	e.Status = next
	e.ProcessedAt = &now
	e.ProcessReason = reason
	e.UpdatedAt = now
}

// Cancel moves the enrollment to CANCELLED on behalf of byUserID and
// returns the status it held before, which decides whether a seat is freed.
func (e *Enrollment) Cancel(byUserID int64, reason string, now time.Time) (EnrollmentStatus, error) {
	if byUserID != e.UserID {
		return e.Status, ErrNotEnrollmentOwner
	}

	prior := e.Status
	next, err := prior.Next(TransitionCancel)
	if err != nil {
		return prior, err
	}

	now = now.UTC()
	e.Status = next
	e.CancelledAt = &now
	e.CancelReason = reason
	e.UpdatedAt = now
	return prior, nil
}

// Complete records completion of an approved enrollment. It succeeds at
// most once per enrollment.
func (e *Enrollment) Complete(attendanceRate, completionRate float64, now time.Time) error {
	if _, err := e.Status.Next(TransitionComplete); err != nil {
		return err
	}
	if e.Completed {
		return ErrAlreadyCompleted
	}
	if !validRate(attendanceRate) || !validRate(completionRate) {
		return ErrInvalidRate
	}

	now = now.UTC()
	e.Completed = true
	e.CompletedAt = &now
	e.AttendanceRate = &attendanceRate
	e.CompletionRate = &completionRate
	e.UpdatedAt = now
	return nil
}

func validRate(r float64) bool {
	return r >= 0 && r <= 100
}
