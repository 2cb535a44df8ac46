// Package store persists user accounts. Implementations return
// sentinel.ErrNotFound for missing users and sentinel.ErrConflict when a
// username or email is already taken.
package store

import (
	"context"

	"chronicle/internal/user/models"
)

// Store is the user persistence interface.
type Store interface {
	// Create inserts the user and returns its assigned ID.
	Create(ctx context.Context, user *models.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// List returns users in ID order plus the total count.
	List(ctx context.Context, offset, limit int) ([]models.User, int64, error)
	// Update rewrites the user's mutable fields by ID.
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}
