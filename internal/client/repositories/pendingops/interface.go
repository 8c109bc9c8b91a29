package pendingops

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

type Repository interface {
	// Enqueue inserts op. Re-enqueuing an existing id replaces its payload.
	Enqueue(ctx context.Context, op *models.PendingOperation) error
	// List returns queued operations oldest first.
	List(ctx context.Context) ([]*models.PendingOperation, error)
	// RecordFailure bumps the attempt count and stores the error message.
	RecordFailure(ctx context.Context, id string, msg string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}
