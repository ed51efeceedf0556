package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// foreignKeyViolationCode is the PostgreSQL error code for foreign key violations
	foreignKeyViolationCode = "23503"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"

	// serializationFailureCode is raised when a transaction cannot be serialized
	serializationFailureCode = "40001"

	// deadlockDetectedCode is raised when PostgreSQL aborts one side of a deadlock
	deadlockDetectedCode = "40P01"

	// lockNotAvailableCode is raised when a NOWAIT lock or lock_timeout fails
	lockNotAvailableCode = "55P03"
)

// liveEnrollmentConstraint is the partial unique index on live enrollments.
const liveEnrollmentConstraint = "uq_course_enrollments_live"

// MapError maps a database error to an appropriate store error.
// It wraps the original error to preserve context and provide better debugging information.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == liveEnrollmentConstraint {
				return fmt.Errorf("%w: %v", store.ErrLiveEnrollmentExists, err)
			}
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case foreignKeyViolationCode:
			return fmt.Errorf(
				"%w: foreign key violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ColumnName,
				err,
			)
		case serializationFailureCode, deadlockDetectedCode, lockNotAvailableCode:
			return fmt.Errorf("%w: %v", store.ErrConcurrencyConflict, err)
		}
	}

	return err
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolationCode)
}

// IsForeignKeyViolation checks if the given error is a PostgreSQL foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolationCode)
}

// IsCheckConstraintViolation checks if the given error is a PostgreSQL check constraint violation.
func IsCheckConstraintViolation(err error) bool {
	return hasCode(err, checkViolationCode)
}

// IsConflictError reports whether err is a PostgreSQL error that aborts a
// transaction because it raced another one, or a store conflict.
func IsConflictError(err error) bool {
	return hasCode(err, serializationFailureCode) ||
		hasCode(err, deadlockDetectedCode) ||
		hasCode(err, lockNotAvailableCode) ||
		errors.Is(err, store.ErrConcurrencyConflict)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// CheckRowsAffected examines the number of rows affected by a database operation.
// If no rows were affected, it returns notFound (or store.ErrNotFound when nil).
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if notFound == nil {
			return store.ErrNotFound
		}
		return notFound
	}

	return nil
}
