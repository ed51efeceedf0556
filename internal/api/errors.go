package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/service/auth"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrNotEnrollmentOwner):
		return http.StatusForbidden

	// Not found errors
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, domain.ErrAlreadyEnrolled),
		store.IsConflictError(err):
		return http.StatusConflict

	// Lifecycle rule violations
	case domain.IsInvalidOperation(err):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Requests that ended before the change was committed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err. Rule
// violations carry their own reason; everything else gets a fixed text.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case domain.IsInvalidOperation(err):
		return domain.Reason(err)

	case errors.Is(err, store.ErrEnrollmentNotFound):
		return "Enrollment not found"
	case errors.Is(err, store.ErrSessionNotFound):
		return "Course session not found"
	case errors.Is(err, store.ErrCourseNotFound):
		return "Course not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case store.IsConflictError(err):
		return "The enrollment was modified concurrently, please retry"

	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out, no change was made"
	case errors.Is(err, context.Canceled):
		return "The request was cancelled, no change was made"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err. A non-empty message replaces
// the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first offending field without echoing its value.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", toSnake(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gt", "gte", "min":
		return "too small"
	case "lt", "lte", "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(field[i-1] >= 'A' && field[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
