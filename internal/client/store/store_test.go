package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "fieldsync.db"), logging.NewNop(), WithClock(func() time.Time { return t0 }))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInit_ConcurrentFirstCallers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CountUnsynced(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestInit_FailureIsRetried(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	calls := 0
	gooseUp = func(ctx context.Context, db *sql.DB) error {
		calls++
		if calls == 1 {
			return errors.New("migration boom")
		}
		return orig(ctx, db)
	}

	s := newStore(t)
	ctx := context.Background()

	_, err := s.CountUnsynced(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Contains(t, err.Error(), "migration boom")

	n, err := s.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, calls)
}

func TestUsers_SaveAndLookupByPIN(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, models.User{ID: "u1", DisplayName: "Sipho", Pin: "1234", IsActive: true, Permissions: []string{"capture"}}))
	require.NoError(t, s.SaveUser(ctx, models.User{ID: "u2", DisplayName: "Anna", Pin: "9876", IsActive: false}))

	u, ok, err := s.GetUserByCredential(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "1234", u.Pin)
	assert.Equal(t, []string{"capture"}, u.Permissions)

	u, ok, err = s.GetUserByCredential(ctx, "9876")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, u.IsActive)

	_, ok, err = s.GetUserByCredential(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.GetUserByCredential(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// PIN change replaces only that identity
	require.NoError(t, s.SaveUser(ctx, models.User{ID: "u1", DisplayName: "Sipho", Pin: "5555", IsActive: true}))
	_, ok, err = s.GetUserByCredential(ctx, "1234")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.GetUserByCredential(ctx, "9876")
	require.NoError(t, err)
	assert.True(t, ok)

	got, ok, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.Pin)

	_, ok, err = s.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveUser_Validation(t *testing.T) {
	s := newStore(t)
	err := s.SaveUser(context.Background(), models.User{ID: "u1"})
	require.ErrorIs(t, err, common.ErrValidation)

	err = s.SaveUser(context.Background(), models.User{Pin: "1"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestSaveRecord_InsertThenUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec := &models.CapturedRecord{VehicleRegistration: "HTS977K", CapturedAt: t0, CapturedBy: "u1"}
	id, err := s.SaveRecord(ctx, rec)
	require.NoError(t, err)
	require.NotZero(t, id)
	assert.Equal(t, id, rec.LocalID)

	rec.Notes = "windscreen cracked"
	id2, err := s.SaveRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	got, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "windscreen cracked", got.Notes)

	all, err := s.ListRecords(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveRecord_UpdateMissing(t *testing.T) {
	s := newStore(t)

	_, err := s.SaveRecord(context.Background(), &models.CapturedRecord{LocalID: 404, CapturedAt: t0})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.GetRecord(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveRecord_StaleCopyKeepsSyncState(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec := &models.CapturedRecord{VehicleRegistration: "HTS977K", CapturedAt: t0, CapturedBy: "u1"}
	_, err := s.SaveRecord(ctx, rec)
	require.NoError(t, err)
	stale := *rec

	for range 3 {
		ok, err := s.RecordSyncAttempt(ctx, rec.LocalID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.MarkRecordSynced(ctx, rec.LocalID, "R-1")
	require.NoError(t, err)
	require.True(t, ok)

	stale.Notes = "edited after sync"
	_, err = s.SaveRecord(ctx, &stale)
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, rec.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "edited after sync", got.Notes)
	assert.True(t, got.IsSynced)
	assert.Equal(t, "R-1", got.RemoteID)
	assert.Equal(t, 3, got.SyncAttempts)
	require.NotNil(t, got.SyncedAt)

	n, err := s.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveRecord_SyncedWithoutRemoteID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.SaveRecord(ctx, &models.CapturedRecord{VehicleRegistration: "A", CapturedAt: t0, IsSynced: true})
	require.ErrorIs(t, err, common.ErrValidation)

	rec := &models.CapturedRecord{VehicleRegistration: "B", CapturedAt: t0}
	_, err = s.SaveRecord(ctx, rec)
	require.NoError(t, err)

	rec.IsSynced = true
	_, err = s.SaveRecord(ctx, rec)
	require.ErrorIs(t, err, common.ErrValidation)

	got, err := s.GetRecord(ctx, rec.LocalID)
	require.NoError(t, err)
	assert.False(t, got.IsSynced)
	assert.Empty(t, got.RemoteID)
}

func TestSyncBookkeeping(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := &models.CapturedRecord{VehicleRegistration: "A", CapturedAt: t0, CapturedBy: "u1"}
	b := &models.CapturedRecord{VehicleRegistration: "B", CapturedAt: t0.Add(time.Minute), CapturedBy: "u1"}
	_, err := s.SaveRecord(ctx, a)
	require.NoError(t, err)
	_, err = s.SaveRecord(ctx, b)
	require.NoError(t, err)

	list, err := s.ListUnsyncedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.LocalID, list[0].LocalID)

	ok, err := s.RecordSyncAttempt(ctx, a.LocalID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.MarkRecordError(ctx, a.LocalID, "network error: create: timeout")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.RecordSyncAttempt(ctx, b.LocalID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.MarkRecordSynced(ctx, b.LocalID, "a0B9")
	require.NoError(t, err)
	require.True(t, ok)

	// idempotent
	ok, err = s.MarkRecordSynced(ctx, b.LocalID, "a0B9")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkRecordSynced(ctx, 999, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.MarkRecordSynced(ctx, a.LocalID, "")
	require.ErrorIs(t, err, common.ErrValidation)

	list, err = s.ListUnsyncedRecords(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.LocalID, list[0].LocalID)
	assert.Equal(t, 1, list[0].SyncAttempts)
	assert.Equal(t, "network error: create: timeout", list[0].SyncError)
	require.NotNil(t, list[0].LastAttemptAt)
	assert.True(t, t0.Equal(*list[0].LastAttemptAt))

	n, err := s.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	synced, err := s.GetRecord(ctx, b.LocalID)
	require.NoError(t, err)
	assert.True(t, synced.IsSynced)
	assert.Equal(t, "a0B9", synced.RemoteID)
	assert.Empty(t, synced.SyncError)
	require.NotNil(t, synced.SyncedAt)

	old, err := s.ListSyncedBefore(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, old, 1)

	n, err = s.DeleteRecords(ctx, []int64{b.LocalID, 999})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteRecords(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOperationsAndMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	op, err := models.NewPendingUpdate("Field_User__c", "u1", map[string]string{"Last_Login__c": "2026-08-03T14:00:00Z"}, t0)
	require.NoError(t, err)
	require.NoError(t, s.EnqueueOperation(ctx, op))
	require.NoError(t, s.RecordOperationFailure(ctx, op.ID, "offline"))

	ops, err := s.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 1, ops[0].Attempts)
	assert.Equal(t, "offline", ops[0].LastError)

	require.NoError(t, s.DeleteOperation(ctx, op.ID))
	ops, err = s.ListOperations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)

	v, _, err := s.GetMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.SetMetadata(ctx, "choices:x", []byte(`["a"]`)))
	v, at, err := s.GetMetadata(ctx, "choices:x")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(v))
	assert.True(t, t0.Equal(at))
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New("", logging.NewNop(), WithDB(db), WithoutMigrations())

	mock.ExpectQuery("SELECT .* FROM captured_records").WillReturnError(errors.New("disk I/O error"))

	_, err = s.ListUnsyncedRecords(context.Background())
	require.Error(t, err)

	var se *common.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list unsynced records", se.Op)
	assert.Contains(t, err.Error(), "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())

	// the store does not close a database it was handed
	require.NoError(t, s.Close())
}

func TestDeleteRecords_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New("", logging.NewNop(), WithDB(db), WithoutMigrations())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM captured_records").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM captured_records").WithArgs(int64(2)).WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	n, err := s.DeleteRecords(context.Background(), []int64{1, 2})
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_OpenFailure(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "missing", "sub", "x.db"), logging.NewNop())

	_, err := s.CountUnsynced(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorage)
}
