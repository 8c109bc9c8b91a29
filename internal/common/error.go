package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage error")

	// Capture-time input errors.
	ErrValidation = errors.New("validation error")

	// Authentication errors. ErrInactive is kept apart from ErrAuth so callers
	// can tell "invalid credential" from "account inactive".
	ErrAuth     = errors.New("invalid credential")
	ErrInactive = errors.New("account inactive")

	// Transport errors.
	ErrNetwork = errors.New("network error")
	ErrRemote  = errors.New("remote rejection")

	// Sync flow control.
	ErrPassInProgress = errors.New("sync pass already running")
)

// ValidationError reports a missing or malformed field at capture time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AuthError is returned when a credential exchange or identity check fails.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth error: " + e.Op
	}
	return fmt.Sprintf("auth error: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// NetworkError wraps transport failures and timeouts. It is transient.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// RemoteErrorItem is one element of the structured error list the backend
// returns alongside a non-success status.
type RemoteErrorItem struct {
	ErrorCode string   `json:"errorCode"`
	Message   string   `json:"message"`
	Fields    []string `json:"fields,omitempty"`
}

// RemoteRejection is a non-2xx backend response.
type RemoteRejection struct {
	Status int
	Body   string
	Errors []RemoteErrorItem
}

func (e *RemoteRejection) Error() string {
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, item := range e.Errors {
			if item.ErrorCode != "" {
				msgs = append(msgs, item.ErrorCode+": "+item.Message)
			} else {
				msgs = append(msgs, item.Message)
			}
		}
		return fmt.Sprintf("remote rejected request (status %d): %s", e.Status, strings.Join(msgs, "; "))
	}
	if e.Body != "" {
		return fmt.Sprintf("remote rejected request (status %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("remote rejected request (status %d)", e.Status)
}

func (e *RemoteRejection) Is(target error) bool { return target == ErrRemote }

// StorageError wraps local persistence failures. It is fatal to the
// operation in flight only.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err with the failing operation name. A nil err
// yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
