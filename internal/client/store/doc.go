// Package store is the local, durable store of the field capture engine and
// the only component that mutates persisted state.
//
// # Initialization
//
// The SQLite database is opened and migrated lazily on the first call of
// any method. Concurrent first callers wait for the same initialization;
// a failed initialization is retried by the next caller.
//
// # Concurrency
//
// Access is serialized per logical table (users, records, pending
// operations, metadata). Operations on different tables may run
// concurrently; the database itself is limited to a single connection.
//
// # Errors
//
// Every failure is returned as a *common.StorageError, so callers can
// test with errors.Is(err, common.ErrStorage). Missing rows additionally
// match common.ErrNotFound.
package store
