package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `local_id, remote_id, barcode, licence_number, vehicle_registration, vehicle_type,
	make, model, colour, vin, engine_number, expiry_date, notes, latitude, longitude, attachments,
	captured_at, captured_by, is_synced, synced_at, sync_attempts, last_attempt_at, sync_error`

func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.CapturedRecord) (int64, error) {
	attachments, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO captured_records (remote_id, barcode, licence_number, vehicle_registration,
			vehicle_type, make, model, colour, vin, engine_number, expiry_date, notes, latitude, longitude,
			attachments, captured_at, captured_by, is_synced, synced_at, sync_attempts, last_attempt_at, sync_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		dbx.NullString(rec.RemoteID), rec.Barcode, rec.LicenceNumber, rec.VehicleRegistration,
		rec.VehicleType, rec.Make, rec.Model, rec.Colour, rec.VIN, rec.EngineNumber, rec.ExpiryDate,
		rec.Notes, nullFloat(rec.Latitude), nullFloat(rec.Longitude), attachments,
		dbx.UnixNano(rec.CapturedAt), rec.CapturedBy, rec.IsSynced, dbx.NullTime(rec.SyncedAt),
		rec.SyncAttempts, dbx.NullTime(rec.LastAttemptAt), dbx.NullString(rec.SyncError))
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec *models.CapturedRecord) (bool, error) {
	attachments, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return false, err
	}

	query := `UPDATE captured_records SET barcode = ?, licence_number = ?,
			vehicle_registration = ?, vehicle_type = ?, make = ?, model = ?, colour = ?, vin = ?,
			engine_number = ?, expiry_date = ?, notes = ?, latitude = ?, longitude = ?, attachments = ?
		WHERE local_id = ?`

	res, err := r.db.ExecContext(ctx, query,
		rec.Barcode, rec.LicenceNumber, rec.VehicleRegistration,
		rec.VehicleType, rec.Make, rec.Model, rec.Colour, rec.VIN, rec.EngineNumber, rec.ExpiryDate,
		rec.Notes, nullFloat(rec.Latitude), nullFloat(rec.Longitude), attachments,
		rec.LocalID)
	if err != nil {
		return false, fmt.Errorf("failed to update record: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID int64) (*models.CapturedRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM captured_records WHERE local_id = ?`, localID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*models.CapturedRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM captured_records ORDER BY captured_at DESC, local_id DESC`
	if limit > 0 {
		return r.query(ctx, query+` LIMIT ?`, limit)
	}
	return r.query(ctx, query)
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.CapturedRecord, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM captured_records
		WHERE is_synced = 0 ORDER BY captured_at DESC, local_id DESC`)
}

func (r *SQLiteRepository) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captured_records WHERE is_synced = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced records: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, localID int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE captured_records SET sync_attempts = sync_attempts + 1, last_attempt_at = ? WHERE local_id = ?`,
		dbx.UnixNano(at), localID)
	if err != nil {
		return false, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, localID int64, remoteID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE captured_records SET is_synced = 1,
			remote_id = COALESCE(remote_id, ?),
			synced_at = COALESCE(synced_at, ?),
			sync_error = NULL
		WHERE local_id = ?`,
		remoteID, dbx.UnixNano(at), localID)
	if err != nil {
		return false, fmt.Errorf("failed to mark record synced: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) MarkError(ctx context.Context, localID int64, msg string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE captured_records SET sync_error = ? WHERE local_id = ? AND is_synced = 0`,
		msg, localID)
	if err != nil {
		return false, fmt.Errorf("failed to mark record error: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) ListSyncedBefore(ctx context.Context, cutoff time.Time) ([]*models.CapturedRecord, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM captured_records
		WHERE is_synced = 1 AND synced_at < ? ORDER BY local_id`, dbx.UnixNano(cutoff))
}

func (r *SQLiteRepository) Delete(ctx context.Context, localID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM captured_records WHERE local_id = ?`, localID)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.CapturedRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.CapturedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.CapturedRecord, error) {
	var (
		rec           models.CapturedRecord
		remoteID      sql.NullString
		lat, lon      sql.NullFloat64
		attachments   string
		capturedAt    int64
		syncedAt      sql.NullInt64
		lastAttemptAt sql.NullInt64
		syncError     sql.NullString
	)

	err := s.Scan(&rec.LocalID, &remoteID, &rec.Barcode, &rec.LicenceNumber, &rec.VehicleRegistration,
		&rec.VehicleType, &rec.Make, &rec.Model, &rec.Colour, &rec.VIN, &rec.EngineNumber, &rec.ExpiryDate,
		&rec.Notes, &lat, &lon, &attachments, &capturedAt, &rec.CapturedBy, &rec.IsSynced, &syncedAt,
		&rec.SyncAttempts, &lastAttemptAt, &syncError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.RemoteID = remoteID.String
	rec.Latitude = floatPtr(lat)
	rec.Longitude = floatPtr(lon)
	rec.CapturedAt = dbx.FromUnixNano(capturedAt)
	rec.SyncedAt = dbx.TimePtr(syncedAt)
	rec.LastAttemptAt = dbx.TimePtr(lastAttemptAt)
	rec.SyncError = syncError.String

	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &rec.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	return &rec, nil
}

func encodeAttachments(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(b), nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
