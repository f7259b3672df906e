package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	apiKeyBytes = 32

	// APIKeyPrefix marks admin keys so they are recognizable in secret scanners.
	APIKeyPrefix = "mbk_"
)

// GenerateAPIKey generates a cryptographically secure admin key: the prefix
// followed by 32 random bytes, hex-encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate API key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}
