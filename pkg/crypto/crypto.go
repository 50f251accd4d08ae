// Package crypto hashes the opaque per-installation credential a client
// supplies on JOIN_SERVER. The credential is stored only as a bcrypt hash;
// reconnects for an existing user id are verified against it.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCredential derives the stored hash for a plaintext credential.
func HashCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// VerifyCredential reports whether credential matches the stored hash.
func VerifyCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
