package store

import (
	"context"

	"github.com/phrazzld/coursehub-api/internal/domain"
)

// CatalogStore is the enrollment core's view of the course catalog.
// Sessions and courses are owned elsewhere; only the seat counters may be
// changed through this interface.
type CatalogStore interface {
	// GetSession returns a snapshot of the session joined with its course.
	// Returns ErrSessionNotFound if the session does not exist.
	GetSession(ctx context.Context, sessionID int64) (*domain.SessionSnapshot, error)

	// GetSessionForUpdate is GetSession with a lock on the session row held
	// until the current transaction ends. Capacity decisions that lead to a
	// counter change must read through this method.
	GetSessionForUpdate(ctx context.Context, sessionID int64) (*domain.SessionSnapshot, error)

	// AdjustEnrollmentCount adds delta to the session's current enrollment.
	// The counter never drops below zero.
	AdjustEnrollmentCount(ctx context.Context, sessionID int64, delta int) error

	// AdjustCourseEnrollmentCount adds delta to the course's enrollment
	// aggregate. The counter never drops below zero.
	AdjustCourseEnrollmentCount(ctx context.Context, courseID int64, delta int) error
}
