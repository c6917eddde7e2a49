package gateway

import (
	"crypto/hmac"
	"strings"

	"github.com/noah-isme/backend-hackreg/internal/common"
)

// Signer computes the gateway's X-VERIFY checksum: the hex SHA-256 of the
// signable string concatenated with the salt key, suffixed with "###" and the
// salt index. The same inputs always produce the same signature; inbound
// signatures are never trusted, only recomputed and compared.
type Signer struct {
	SaltKey   string
	SaltIndex string
}

// Sign produces the checksum for the given signable string (base64 payload +
// api path for intent creation, the status path alone for status queries).
func (s Signer) Sign(signable string) string {
	index := strings.TrimSpace(s.SaltIndex)
	if index == "" {
		index = "1"
	}
	return common.Sha256Hex(signable+s.SaltKey) + "###" + index
}

// Verify recomputes the checksum for signable and compares it against the
// supplied value in constant time.
func (s Signer) Verify(signable, supplied string) bool {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return false
	}
	expected := s.Sign(signable)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
