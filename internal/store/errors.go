package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrUserNotFound, ErrEnrollmentNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrConcurrencyConflict is returned when a write lost a race with a
	// concurrent transaction: a serialization failure, a deadlock, or a
	// stale version on update. The whole operation may be retried.
	ErrConcurrencyConflict = errors.New("concurrent modification")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrUserNotFound indicates that the requested user does not exist in the store.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrSessionNotFound indicates that the requested course session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: course session", ErrNotFound)

	// ErrCourseNotFound indicates that the course owning a session does not exist.
	ErrCourseNotFound = fmt.Errorf("%w: course", ErrNotFound)

	// ErrEnrollmentNotFound indicates that the requested enrollment does not exist.
	ErrEnrollmentNotFound = fmt.Errorf("%w: enrollment", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrLiveEnrollmentExists indicates that the user already holds a pending
	// or approved enrollment in the session.
	ErrLiveEnrollmentExists = fmt.Errorf("%w: live enrollment", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// Entity-specific not found errors all wrap ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsConflictError reports whether err signals a lost race that may be retried.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "enrollment", "course_session")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
