package webpush

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var urlToStd = strings.NewReplacer("-", "+", "_", "/")

// Encode returns b as unpadded base64url text.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode converts base64url text (padded or not) back to bytes. Text in the
// standard alphabet is accepted as well, since browsers and key generators
// disagree on which one to emit.
func Decode(s string) ([]byte, error) {
	std := urlToStd.Replace(s)
	if pad := len(std) % 4; pad != 0 {
		std += strings.Repeat("=", 4-pad)
	}
	b, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return b, nil
}
