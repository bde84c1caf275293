package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewToken returns 32 random bytes, hex encoded.
// Used for both session ids and CSRF token values.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
