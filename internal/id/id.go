package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Correlation returns a fresh correlation id (UUID v4, 122 random bits).
func Correlation() string {
	return uuid.New().String()
}

// IsCorrelation reports whether s is a canonical version 4 UUID as issued by
// Correlation.
func IsCorrelation(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

// Invocation returns a 16 character hex id for a single invocation round-trip.
func Invocation() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
