// Package common contains shared constants and error types used across
// fieldsync components.
package common

// UnknownUserID is recorded as the capturing user when no authenticated
// identity is available at capture time.
const UnknownUserID = "unknown"

// AuthorizationHeaderName and BearerScheme describe how the access token is
// attached to outbound backend requests.
const (
	AuthorizationHeaderName = "Authorization"
	BearerScheme            = "Bearer"
)
