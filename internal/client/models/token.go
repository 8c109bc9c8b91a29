package models

import "time"

// CachedToken is the backend access token together with the endpoint it
// was issued for. ExpiresAt already includes the safety margin.
type CachedToken struct {
	Value            string
	TokenType        string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	InstanceEndpoint string
	IDURL            string
	Signature        string

	// TokenURL and ClientID identify the credentials the token was issued
	// to. A cached token is only reused under the same pair.
	TokenURL string
	ClientID string
}

// Valid reports whether the token can still be used at now.
func (t *CachedToken) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}
