package store

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/users"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
)

// SaveUser replaces the stored identity u.ID with u. The PIN is stored as a
// salted hash. Other cached users are left untouched.
func (s *Store) SaveUser(ctx context.Context, u models.User) error {
	if u.ID == "" {
		return &common.ValidationError{Field: "id", Reason: "required"}
	}
	if u.Pin == "" {
		return &common.ValidationError{Field: "pin", Reason: "required"}
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return common.NewStorageError("save user", err)
	}
	stored := &users.StoredUser{
		User:    u,
		PinHash: cryptox.HashPIN(u.Pin, salt),
		PinSalt: salt,
	}
	stored.Pin = ""

	return s.guard(ctx, &s.usersMu, "save user", func() error {
		return s.users.Upsert(ctx, stored)
	})
}

// GetUserByCredential returns the cached user whose PIN matches pin.
// The returned user carries pin in its Pin field.
func (s *Store) GetUserByCredential(ctx context.Context, pin string) (*models.User, bool, error) {
	if pin == "" {
		return nil, false, nil
	}

	var found *models.User
	err := s.guard(ctx, &s.usersMu, "get user by credential", func() error {
		list, err := s.users.List(ctx)
		if err != nil {
			return err
		}
		for i := range list {
			if cryptox.VerifyPIN(pin, list[i].PinSalt, list[i].PinHash) {
				u := list[i].User
				u.Pin = pin
				found = &u
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// GetUser returns the cached user by id. The PIN is not populated.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, bool, error) {
	var found *models.User
	err := s.guard(ctx, &s.usersMu, "get user", func() error {
		u, err := s.users.GetByID(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &u.User
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}
