package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// SaveRecord inserts rec when rec.LocalID is zero and updates it in place
// otherwise. On insert rec.LocalID is set to the assigned id. An update only
// touches the captured payload; sync state changes go through
// RecordSyncAttempt, MarkRecordSynced and MarkRecordError.
func (s *Store) SaveRecord(ctx context.Context, rec *models.CapturedRecord) (int64, error) {
	if rec.IsSynced && rec.RemoteID == "" {
		return 0, &common.ValidationError{Field: "remoteId", Reason: "required for a synced record"}
	}
	err := s.guard(ctx, &s.recordsMu, "save record", func() error {
		if rec.LocalID == 0 {
			id, err := s.records.Insert(ctx, rec)
			if err != nil {
				return err
			}
			rec.LocalID = id
			return nil
		}

		ok, err := s.records.Update(ctx, rec)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("record %d: %w", rec.LocalID, common.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rec.LocalID, nil
}

func (s *Store) GetRecord(ctx context.Context, localID int64) (*models.CapturedRecord, error) {
	var rec *models.CapturedRecord
	err := s.guard(ctx, &s.recordsMu, "get record", func() (err error) {
		rec, err = s.records.GetByID(ctx, localID)
		return err
	})
	return rec, err
}

// ListRecords returns records newest first; limit <= 0 returns all.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]*models.CapturedRecord, error) {
	var list []*models.CapturedRecord
	err := s.guard(ctx, &s.recordsMu, "list records", func() (err error) {
		list, err = s.records.List(ctx, limit)
		return err
	})
	return list, err
}

// ListUnsyncedRecords returns unsynced records by capture time, newest first.
func (s *Store) ListUnsyncedRecords(ctx context.Context) ([]*models.CapturedRecord, error) {
	var list []*models.CapturedRecord
	err := s.guard(ctx, &s.recordsMu, "list unsynced records", func() (err error) {
		list, err = s.records.ListUnsynced(ctx)
		return err
	})
	return list, err
}

func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := s.guard(ctx, &s.recordsMu, "count unsynced records", func() (err error) {
		n, err = s.records.CountUnsynced(ctx)
		return err
	})
	return n, err
}

// MarkRecordSynced sets the record synced with remoteID and clears its
// error. It returns false if no record matches.
func (s *Store) MarkRecordSynced(ctx context.Context, localID int64, remoteID string) (bool, error) {
	if remoteID == "" {
		return false, &common.ValidationError{Field: "remoteId", Reason: "required"}
	}
	var ok bool
	err := s.guard(ctx, &s.recordsMu, "mark record synced", func() (err error) {
		ok, err = s.records.MarkSynced(ctx, localID, remoteID, s.now())
		return err
	})
	return ok, err
}

// RecordSyncAttempt increments the attempt counter of the record.
func (s *Store) RecordSyncAttempt(ctx context.Context, localID int64) (bool, error) {
	var ok bool
	err := s.guard(ctx, &s.recordsMu, "record sync attempt", func() (err error) {
		ok, err = s.records.IncrementAttempts(ctx, localID, s.now())
		return err
	})
	return ok, err
}

// MarkRecordError stores msg as the last sync failure of an unsynced record.
func (s *Store) MarkRecordError(ctx context.Context, localID int64, msg string) (bool, error) {
	var ok bool
	err := s.guard(ctx, &s.recordsMu, "mark record error", func() (err error) {
		ok, err = s.records.MarkError(ctx, localID, msg)
		return err
	})
	return ok, err
}

func (s *Store) ListSyncedBefore(ctx context.Context, cutoff time.Time) ([]*models.CapturedRecord, error) {
	var list []*models.CapturedRecord
	err := s.guard(ctx, &s.recordsMu, "list synced records", func() (err error) {
		list, err = s.records.ListSyncedBefore(ctx, cutoff)
		return err
	})
	return list, err
}

// DeleteRecords removes the records with the given ids in one transaction
// and returns how many of them existed. Either all rows go or none do.
func (s *Store) DeleteRecords(ctx context.Context, localIDs []int64) (int, error) {
	if len(localIDs) == 0 {
		return 0, nil
	}
	var n int
	err := s.guard(ctx, &s.recordsMu, "delete records", func() error {
		n = 0
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := records.NewSQLiteRepository(tx)
			for _, id := range localIDs {
				ok, err := repo.Delete(ctx, id)
				if err != nil {
					return err
				}
				if ok {
					n++
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
