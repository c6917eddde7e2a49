package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests data with SHA-256 and returns the lowercase hex encoding.
// Gateway checksums are built from this digest.
func Sha256Hex(data string) string {
	digest := sha256.Sum256([]byte(data))
	return hex.EncodeToString(digest[:])
}
