package realtime

import (
	"crypto/rand"
	"encoding/hex"
)

const defaultRandomBytes = 16

// NewRandomHex returns 2*nBytes hex characters of crypto-grade
// randomness. Connection ids use it; they never leave the process.
func NewRandomHex(nBytes int) string {
	if nBytes <= 0 {
		nBytes = defaultRandomBytes
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		// Callers treat empty as an error-like condition in logs.
		return ""
	}
	return hex.EncodeToString(b)
}
