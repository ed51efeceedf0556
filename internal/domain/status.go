package domain

import "fmt"

// EnrollmentStatus is the lifecycle state of a course enrollment.
type EnrollmentStatus string

// Possible enrollment status values
const (
	StatusPending   EnrollmentStatus = "PENDING"
	StatusApproved  EnrollmentStatus = "APPROVED"
	StatusRejected  EnrollmentStatus = "REJECTED"
	StatusCancelled EnrollmentStatus = "CANCELLED"
)

// AllStatuses lists every enrollment status in declaration order.
var AllStatuses = []EnrollmentStatus{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

// Transition is an event that moves an enrollment between statuses.
type Transition string

// Enrollment transitions
const (
	TransitionApprove  Transition = "approve"
	TransitionReject   Transition = "reject"
	TransitionCancel   Transition = "cancel"
	TransitionComplete Transition = "complete"
)

// IsValid reports whether s is one of the known statuses.
func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsLive reports whether s occupies (or is waiting for) a seat.
// A user holds at most one live enrollment per session.
func (s EnrollmentStatus) IsLive() bool {
	return s == StatusPending || s == StatusApproved
}

// IsTerminal reports whether no further transition is possible from s.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// ParseStatus converts a string into an EnrollmentStatus.
func ParseStatus(raw string) (EnrollmentStatus, error) {
	s := EnrollmentStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown enrollment status %q", ErrValidation, raw)
	}
	return s, nil
}

// Next returns the status reached by applying t to s, or the rule violation
// that forbids it. Every (status, transition) pair is handled here and
// nowhere else.
func (s EnrollmentStatus) Next(t Transition) (EnrollmentStatus, error) {
	switch s {
	case StatusPending:
		switch t {
		case TransitionApprove:
			return StatusApproved, nil
		case TransitionReject:
			return StatusRejected, nil
		case TransitionCancel:
			return StatusCancelled, nil
		case TransitionComplete:
			return s, ErrCompleteNotApproved
		}
	case StatusApproved:
		switch t {
		case TransitionApprove:
			return s, ErrApproveNotPending
		case TransitionReject:
			return s, ErrRejectNotPending
		case TransitionCancel:
			return StatusCancelled, nil
		case TransitionComplete:
			return StatusApproved, nil
		}
	case StatusRejected:
		switch t {
		case TransitionApprove:
			return s, ErrApproveNotPending
		case TransitionReject:
			return s, ErrRejectNotPending
		case TransitionCancel:
			return s, ErrCancelRejected
		case TransitionComplete:
			return s, ErrCompleteNotApproved
		}
	case StatusCancelled:
		switch t {
		case TransitionApprove:
			return s, ErrApproveNotPending
		case TransitionReject:
			return s, ErrRejectNotPending
		case TransitionCancel:
			return s, ErrAlreadyCancelled
		case TransitionComplete:
			return s, ErrCompleteNotApproved
		}
	}
	return s, fmt.Errorf("%w: transition %q from status %q", ErrValidation, t, s)
}
