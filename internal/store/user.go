package store

import (
	"context"

	"github.com/phrazzld/coursehub-api/internal/domain"
)

// UserStore resolves user identifiers to profiles.
type UserStore interface {
	// GetUser retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}
