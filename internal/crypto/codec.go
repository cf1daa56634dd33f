package crypto

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedEnvelope is returned by Decode for text that is not canonical
// padded standard Base64.
var ErrMalformedEnvelope = errors.New("crypto: malformed envelope encoding")

// Encode maps raw ciphertext to transport text: standard alphabet, '=' padded.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the exact inverse of Encode. Unlike the stdlib decoder it does not
// skip line breaks, and it rejects non-zero trailing bits, so every accepted
// input re-encodes to itself.
func Decode(s string) ([]byte, error) {
	if len(s)%4 != 0 {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "length %d is not a multiple of 4", len(s))
	}
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "illegal character at offset %d", i)
	}
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	return b, nil
}
