package pendingops

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, op *models.PendingOperation) error {
	query := `INSERT INTO pending_operations (id, kind, object_kind, remote_id, payload, attempts, last_error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET kind = excluded.kind,
				object_kind = excluded.object_kind,
				remote_id = excluded.remote_id,
				payload = excluded.payload`

	_, err := r.db.ExecContext(ctx, query, op.ID, string(op.Kind), op.ObjectKind, op.RemoteID,
		[]byte(op.Payload), op.Attempts, op.LastError, dbx.UnixNano(op.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.PendingOperation, error) {
	query := `SELECT id, kind, object_kind, remote_id, payload, attempts, last_error, created_at
		FROM pending_operations ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingOperation
	for rows.Next() {
		var (
			op        models.PendingOperation
			kind      string
			payload   []byte
			createdAt int64
		)
		if err := rows.Scan(&op.ID, &kind, &op.ObjectKind, &op.RemoteID, &payload, &op.Attempts, &op.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		op.Payload = payload
		op.CreatedAt = dbx.FromUnixNano(createdAt)
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, msg string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pending_operations SET attempts = attempts + 1, last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return false, fmt.Errorf("failed to record operation failure: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete operation: %w", err)
	}
	return dbx.Affected(res)
}
