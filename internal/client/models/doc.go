// Package models defines the client-side data models of the field capture
// engine: field users, captured records, the cached backend token, the
// login session value and queued background operations.
package models
