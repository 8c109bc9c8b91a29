// Package records is the persistence layer for captured field records.
//
// # Data Model
//
// A record is keyed by an AUTOINCREMENT local id, so ids are never reused
// even after deletion. Sync bookkeeping lives on the row itself:
// is_synced, remote_id (written once), synced_at, sync_attempts,
// last_attempt_at and sync_error. Timestamps are unix nanoseconds.
//
// # Concurrency
//
// The repository does no locking of its own. The local store serializes
// access per table.
//
// Typical Usage
//
//	repo := records.NewSQLiteRepository(db)
//	id, _ := repo.Insert(ctx, rec)
//	pending, _ := repo.ListUnsynced(ctx)
//	_, _ = repo.IncrementAttempts(ctx, id, time.Now())
//	ok, _ := repo.MarkSynced(ctx, id, "a0B5g00000XyZ1", time.Now())
package records
