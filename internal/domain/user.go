package domain

import "errors"

// Common validation errors
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptyDisplayName = errors.New("display name cannot be empty")
)

// User is the identity profile the enrollment core needs: who the user is
// and how to show them. Registration and credentials live elsewhere.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return ErrEmptyUserID
	}
	if u.DisplayName == "" {
		return ErrEmptyDisplayName
	}
	return nil
}
