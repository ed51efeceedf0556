// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is zero or negative.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidOperation is the category for every rule violation in the
	// enrollment lifecycle. Specific reasons below wrap it, so callers can
	// test for either the category or the exact reason with errors.Is.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// Enrollment rule violations. Each one carries a human-readable reason.
var (
	ErrAlreadyEnrolled       = invalidOperation("already enrolled in this session")
	ErrCapacityExceeded      = invalidOperation("capacity exceeded")
	ErrRecruitmentNotStarted = invalidOperation("recruitment has not started yet")
	ErrRecruitmentEnded      = invalidOperation("recruitment has ended")
	ErrNotEnrollmentOwner    = invalidOperation("only your own enrollment can be cancelled")
	ErrAlreadyCancelled      = invalidOperation("enrollment is already cancelled")
	ErrCancelRejected        = invalidOperation("rejected enrollments cannot be cancelled")
	ErrApproveNotPending     = invalidOperation("only pending enrollments can be approved")
	ErrRejectNotPending      = invalidOperation("only pending enrollments can be rejected")
	ErrCompleteNotApproved   = invalidOperation("only approved enrollments can be completed")
	ErrAlreadyCompleted      = invalidOperation("enrollment is already completed")
	ErrInvalidRate           = invalidOperation("rate must be between 0 and 100")
)

var ruleViolations = []error{
	ErrAlreadyEnrolled, ErrCapacityExceeded, ErrRecruitmentNotStarted,
	ErrRecruitmentEnded, ErrNotEnrollmentOwner, ErrAlreadyCancelled,
	ErrCancelRejected, ErrApproveNotPending, ErrRejectNotPending,
	ErrCompleteNotApproved, ErrAlreadyCompleted, ErrInvalidRate,
}

func invalidOperation(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, reason)
}

// IsInvalidOperation reports whether err is a lifecycle rule violation.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// Reason returns the human-readable part of a rule violation, without the
// category prefix, even when err has been wrapped by outer layers.
// For any other error it returns err.Error().
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range ruleViolations {
		if errors.Is(err, known) {
			return strings.TrimPrefix(known.Error(), ErrInvalidOperation.Error()+": ")
		}
	}
	return err.Error()
}
