package webpush

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MaxDeriveLength is the largest output DeriveKey produces: one HMAC-SHA-256
// block. Web Push never needs more than 32 bytes.
const MaxDeriveLength = sha256.Size

// Extract is the RFC 5869 extract step. An empty salt is replaced with
// HashLen zero bytes.
func Extract(ikm, salt []byte) []byte {
	if len(salt) == 0 {
		salt = make([]byte, sha256.Size)
	}
	return hkdf.Extract(sha256.New, ikm, salt)
}

// Expand is the RFC 5869 expand step restricted to a single block, i.e.
// T(1) = HMAC(prk, info || 0x01) truncated to length.
func Expand(prk, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > MaxDeriveLength {
		return nil, fmt.Errorf("hkdf: length %d outside 1..%d", length, MaxDeriveLength)
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// DeriveKey runs HKDF-SHA-256 extract-then-expand and returns length bytes.
func DeriveKey(ikm, salt, info []byte, length int) ([]byte, error) {
	return Expand(Extract(ikm, salt), info, length)
}
