// Package services contains the application services of the field engine:
// PIN login, record capture, the sync orchestrator, housekeeping and
// choice-list caching. Each service depends on narrow interfaces so it can
// be tested against fakes.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// UserStore is the part of the local store used by AuthService.
type UserStore interface {
	SaveUser(ctx context.Context, u models.User) error
	GetUserByCredential(ctx context.Context, pin string) (*models.User, bool, error)
	EnqueueOperation(ctx context.Context, op *models.PendingOperation) error
}

// RecordStore is the part of the local store used by capture, sync and
// housekeeping.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *models.CapturedRecord) (int64, error)
	GetRecord(ctx context.Context, localID int64) (*models.CapturedRecord, error)
	ListRecords(ctx context.Context, limit int) ([]*models.CapturedRecord, error)
	ListUnsyncedRecords(ctx context.Context) ([]*models.CapturedRecord, error)
	CountUnsynced(ctx context.Context) (int, error)
	RecordSyncAttempt(ctx context.Context, localID int64) (bool, error)
	MarkRecordSynced(ctx context.Context, localID int64, remoteID string) (bool, error)
	MarkRecordError(ctx context.Context, localID int64, msg string) (bool, error)
	ListSyncedBefore(ctx context.Context, cutoff time.Time) ([]*models.CapturedRecord, error)
	DeleteRecords(ctx context.Context, localIDs []int64) (int, error)
}

// OperationStore is the pending-operation queue drained by the sync pass.
type OperationStore interface {
	ListOperations(ctx context.Context) ([]*models.PendingOperation, error)
	RecordOperationFailure(ctx context.Context, id, msg string) error
	DeleteOperation(ctx context.Context, id string) error
}

// MetadataStore caches small values such as choice lists.
type MetadataStore interface {
	GetMetadata(ctx context.Context, key string) ([]byte, time.Time, error)
	SetMetadata(ctx context.Context, key string, value []byte) error
	DeleteMetadata(ctx context.Context, key string) error
	MetadataKeys(ctx context.Context, prefix string) ([]string, error)
}

// Connectivity reports whether the backend is currently reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// SessionAuthenticator makes sure a machine credential is available.
type SessionAuthenticator interface {
	EnsureAuthenticated(ctx context.Context) error
}
