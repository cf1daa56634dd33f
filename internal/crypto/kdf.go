package crypto

import (
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length produced by DeriveKey.
	KeySize = 32
	// KDFIterations is the PBKDF2 work factor. Changing it changes every key.
	KDFIterations = 100000
)

// kdfSalt is fixed so that the same password yields the same key on every
// device without any stored header.
var kdfSalt = []byte("OpenLockrSaltValue")

var ErrKeyDerivation = errors.New("crypto: key derivation failed")

// DeriveKey stretches a master password into a KeySize key with
// PBKDF2-HMAC-SHA256. The caller owns the returned slice and should Zero it.
func DeriveKey(password []byte) ([]byte, error) {
	key := pbkdf2.Key(password, kdfSalt, KDFIterations, KeySize, sha256.New)
	if len(key) != KeySize {
		Zero(key)
		return nil, errors.Wrapf(ErrKeyDerivation, "got %d bytes", len(key))
	}
	return key, nil
}
