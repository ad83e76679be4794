package repository

import (
	"context"
	"errors"

	"sessionguard/internal/lockout"
	"sessionguard/internal/user/domain"
)

// ErrAlreadyExists is returned by Create when the id or username is already registered.
var ErrAlreadyExists = errors.New("user already exists")

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByUsername returns the user, or nil if not found. Usernames are stored lowercase.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateSecurity writes the lockout state and enabled flag only if the stored version still equals
	// expectedVersion, and returns the new version. Returns storage.ErrConflict when the row no longer
	// matches, including when it was deleted; a re-read tells the two apart.
	UpdateSecurity(ctx context.Context, id string, expectedVersion int64, state lockout.SecurityState, enabled bool) (int64, error)
}
