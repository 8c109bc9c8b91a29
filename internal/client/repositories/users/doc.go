// Package users persists field user identities in the local store.
//
// A user row is written wholesale after every successful remote lookup and
// carries a salted PIN hash instead of the PIN itself, so offline logins can
// be verified without keeping the secret on disk.
package users
