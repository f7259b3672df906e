package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// HashKey hashes a plaintext key using bcrypt with cost factor 12.
func HashKey(key string) (string, error) {
	return hashKeyWithCost(key, bcryptCost)
}

func hashKeyWithCost(key string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}

// VerifyKey checks a plaintext key against a bcrypt hash.
// Returns nil on success, or an error if the key does not match.
func VerifyKey(hash, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
