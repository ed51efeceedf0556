package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// ServiceError is a custom error type for enrollment service errors.
// Lifecycle rule violations are returned as-is and never wrapped in it.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrollment service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("enrollment service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// wrap classifies err for operation op. Rule violations pass through
// unchanged so callers can read their reason directly.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	switch {
	case domain.IsInvalidOperation(err), errors.As(err, &se):
		return err
	case store.IsNotFoundError(err):
		return NewServiceError(op, "referenced entity not found", err)
	case store.IsConflictError(err):
		return NewServiceError(op, "retries exhausted on concurrent modification", err)
	case errors.Is(err, context.Canceled):
		return NewServiceError(op, "request cancelled before commit", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewServiceError(op, "request deadline exceeded before commit", err)
	default:
		return NewServiceError(op, "unexpected error", err)
	}
}
