package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Repository describes storage operations on CapturedRecord rows.
// Methods returning bool report whether a row matched.
type Repository interface {
	// Insert stores a new record and returns its assigned local id.
	Insert(ctx context.Context, r *models.CapturedRecord) (int64, error)

	// Update overwrites the payload columns of the row identified by
	// r.LocalID. Sync state, capture time and author are left alone.
	Update(ctx context.Context, r *models.CapturedRecord) (bool, error)

	// GetByID returns common.ErrNotFound if there is no such record.
	GetByID(ctx context.Context, localID int64) (*models.CapturedRecord, error)

	// List returns records newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*models.CapturedRecord, error)

	// ListUnsynced returns unsynced records ordered by capture time, newest first.
	ListUnsynced(ctx context.Context) ([]*models.CapturedRecord, error)

	CountUnsynced(ctx context.Context) (int, error)

	// IncrementAttempts adds one to sync_attempts and stamps last_attempt_at.
	IncrementAttempts(ctx context.Context, localID int64, at time.Time) (bool, error)

	// MarkSynced flags the record as accepted by the backend and clears any
	// error. remote_id and synced_at keep their first values.
	MarkSynced(ctx context.Context, localID int64, remoteID string, at time.Time) (bool, error)

	// MarkError stores the last failure message on an unsynced record.
	MarkError(ctx context.Context, localID int64, msg string) (bool, error)

	// ListSyncedBefore returns synced records whose synced_at is before cutoff.
	ListSyncedBefore(ctx context.Context, cutoff time.Time) ([]*models.CapturedRecord, error)

	Delete(ctx context.Context, localID int64) (bool, error)
}
