package client

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Client is the backend contract used by the sync engine.
type Client interface {
	// Create inserts a new object of kind and returns its remote id.
	Create(ctx context.Context, kind string, payload any) (string, error)
	// Update patches the object kind/id with the fields in payload.
	Update(ctx context.Context, kind, id string, payload any) error
	// Query runs statement and returns every result row, following
	// pagination until the backend reports done.
	Query(ctx context.Context, statement string) ([]json.RawMessage, error)
	// UploadAttachment stores data as a versioned content object linked to
	// parentID and returns the content id.
	UploadAttachment(ctx context.Context, parentID, fileName string, data []byte, contentType string) (string, error)
	// DescribeChoiceField returns the active values of a picklist field.
	DescribeChoiceField(ctx context.Context, kind, field string) ([]string, error)
}

// Authenticator supplies the bearer token for each call. Token must make
// sure the token is valid, authenticating if needed.
type Authenticator interface {
	Token(ctx context.Context) (models.CachedToken, error)
	// Invalidate drops the current token after the backend refused it.
	Invalidate()
}
