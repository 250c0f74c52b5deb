package store

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-char hex ID for persisted records.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
