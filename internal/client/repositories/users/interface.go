package users

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// StoredUser is a user row with its PIN verifier.
type StoredUser struct {
	models.User
	PinHash []byte
	PinSalt []byte
}

type Repository interface {
	// Upsert inserts the user or replaces every column of the existing row.
	Upsert(ctx context.Context, u *StoredUser) error
	// List returns all cached users.
	List(ctx context.Context) ([]StoredUser, error)
	// GetByID returns common.ErrNotFound when no row matches.
	GetByID(ctx context.Context, id string) (*StoredUser, error)
}
