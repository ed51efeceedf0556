package store

import (
	"context"

	"github.com/phrazzld/coursehub-api/internal/domain"
)

// EnrollmentStore defines the interface for enrollment persistence.
// Enrollments are never deleted, so there is no Delete method.
type EnrollmentStore interface {
	// Create saves a new enrollment and assigns its ID and version.
	// Returns ErrLiveEnrollmentExists if the user already holds a live
	// enrollment in the same session.
	Create(ctx context.Context, enrollment *domain.Enrollment) error

	// GetByID retrieves an enrollment by ID.
	// Returns ErrEnrollmentNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Enrollment, error)

	// GetForUpdate retrieves an enrollment and locks it until the current
	// transaction ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id int64) (*domain.Enrollment, error)

	// Update persists every mutable field of the enrollment.
	// The write succeeds only if the stored version equals enrollment.Version;
	// otherwise ErrConcurrencyConflict is returned. On success the version
	// is incremented in place.
	Update(ctx context.Context, enrollment *domain.Enrollment) error

	// FindLive returns the user's PENDING or APPROVED enrollment in the
	// session, or ErrEnrollmentNotFound if there is none.
	FindLive(ctx context.Context, userID, sessionID int64) (*domain.Enrollment, error)

	// ListByUser returns all enrollments of a user, newest application first.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Enrollment, error)

	// ListBySession returns the enrollments of a session, oldest application
	// first. A nil status returns every status.
	ListBySession(ctx context.Context, sessionID int64, status *domain.EnrollmentStatus) ([]*domain.Enrollment, error)
}
