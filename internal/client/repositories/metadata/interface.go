// Package metadata is a small key/value table in the local store used for
// cached backend configuration such as choice lists.
package metadata

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns (nil, zero time, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, time.Time, error)
	Set(ctx context.Context, key string, value []byte, at time.Time) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
