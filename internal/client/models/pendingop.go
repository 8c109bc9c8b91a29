package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OperationKind string

const (
	// OpUpdate patches an existing backend object.
	OpUpdate OperationKind = "update"
)

// PendingOperation is a non-record background write queued for the next
// sync pass, e.g. a last-login update that could not be sent at login.
type PendingOperation struct {
	ID         string
	Kind       OperationKind
	ObjectKind string
	RemoteID   string
	Payload    json.RawMessage
	Attempts   int
	LastError  string
	CreatedAt  time.Time
}

func NewPendingUpdate(objectKind, remoteID string, payload any, now time.Time) (*PendingOperation, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &PendingOperation{
		ID:         uuid.NewString(),
		Kind:       OpUpdate,
		ObjectKind: objectKind,
		RemoteID:   remoteID,
		Payload:    b,
		CreatedAt:  now,
	}, nil
}
