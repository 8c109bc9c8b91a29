package models

import "time"

// User is a field user identity as issued by the backend. It is replaced
// wholesale on every successful remote lookup and never partially patched.
type User struct {
	// ID is the backend-issued, stable identifier.
	ID          string
	DisplayName string
	// Pin is the shared-secret credential. It is only held in memory; the
	// local store keeps a salted hash.
	Pin               string
	IsActive          bool
	Permissions       []string
	BranchPermissions []string
	LastSyncedAt      *time.Time
}
