package hasher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex-encoded SHA-256 hash of the input string.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Verify compares a value against its expected hash.
func Verify(value, hash string) bool {
	return Hash(value) == hash
}

// SumBytes is the same as Hash but takes a []byte.
func SumBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// NewToken returns an opaque random token (hex of hashed random bytes).
// Used for guest ride ownership tokens.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return SumBytes(buf), nil
}
