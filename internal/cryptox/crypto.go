// Package cryptox hashes the numeric PINs that field users log in with.
//
// PINs are never stored in clear text: the local store keeps an argon2id
// hash and a per-user random salt, and a login attempt is verified by
// recomputing the hash and comparing in constant time.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32

	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
)

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// HashPIN derives the stored verifier for pin.
func HashPIN(pin string, salt []byte) []byte {
	return argon2.IDKey([]byte(pin), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// VerifyPIN reports whether pin matches the hash produced with salt.
func VerifyPIN(pin string, salt, hash []byte) bool {
	if len(hash) == 0 {
		return false
	}
	got := HashPIN(pin, salt)
	return subtle.ConstantTimeCompare(got, hash) == 1
}
