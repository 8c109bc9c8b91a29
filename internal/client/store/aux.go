package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

func (s *Store) EnqueueOperation(ctx context.Context, op *models.PendingOperation) error {
	return s.guard(ctx, &s.opsMu, "enqueue operation", func() error {
		return s.ops.Enqueue(ctx, op)
	})
}

func (s *Store) ListOperations(ctx context.Context) ([]*models.PendingOperation, error) {
	var list []*models.PendingOperation
	err := s.guard(ctx, &s.opsMu, "list operations", func() (err error) {
		list, err = s.ops.List(ctx)
		return err
	})
	return list, err
}

func (s *Store) RecordOperationFailure(ctx context.Context, id, msg string) error {
	return s.guard(ctx, &s.opsMu, "record operation failure", func() error {
		_, err := s.ops.RecordFailure(ctx, id, msg)
		return err
	})
}

func (s *Store) DeleteOperation(ctx context.Context, id string) error {
	return s.guard(ctx, &s.opsMu, "delete operation", func() error {
		_, err := s.ops.Delete(ctx, id)
		return err
	})
}

// GetMetadata returns the value stored under key and when it was written.
// A missing key yields a nil value.
func (s *Store) GetMetadata(ctx context.Context, key string) ([]byte, time.Time, error) {
	var (
		value []byte
		at    time.Time
	)
	err := s.guard(ctx, &s.metaMu, "get metadata", func() (err error) {
		value, at, err = s.metadata.Get(ctx, key)
		return err
	})
	return value, at, err
}

func (s *Store) SetMetadata(ctx context.Context, key string, value []byte) error {
	return s.guard(ctx, &s.metaMu, "set metadata", func() error {
		return s.metadata.Set(ctx, key, value, s.now())
	})
}

// MetadataKeys returns the stored keys starting with prefix, sorted.
func (s *Store) MetadataKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.guard(ctx, &s.metaMu, "list metadata", func() (err error) {
		keys, err = s.metadata.Keys(ctx, prefix)
		return err
	})
	return keys, err
}

func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	return s.guard(ctx, &s.metaMu, "delete metadata", func() error {
		return s.metadata.Delete(ctx, key)
	})
}
