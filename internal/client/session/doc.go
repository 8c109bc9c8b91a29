// Package session owns the machine credential used for every backend call.
//
// A Manager exchanges the configured client id/secret for an access token,
// computes a local expiry (issued_at + lifetime - safety margin), keeps the
// token in memory and persists it to a TokenCache so a restart can reuse it
// without a network round trip. EnsureAuthenticated is a no-op while the
// token is still valid. Authentication failures are returned as
// *common.AuthError and never retried here.
package session
