package crypto

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	authVersion  byte = 0x02
	authMacSize       = sha256.Size
	authMinSize       = 1 + IVSize + aes.BlockSize + authMacSize
	authKeysInfo      = "lockr/envelope/v2"
)

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	ErrInvalidMAC         = errors.New("crypto: message authentication failed")
)

// IsAuthenticated reports whether raw has the shape produced by
// SealAuthenticated. Session-IV ciphertexts are whole blocks, authenticated
// ones are one version byte longer, so the two never collide.
func IsAuthenticated(raw []byte) bool {
	return len(raw) >= authMinSize && len(raw)%aes.BlockSize == 1 && raw[0] == authVersion
}

// SealAuthenticated applies encrypt-then-MAC: AES-256-CBC under a fresh
// random IV, then HMAC-SHA256 over version, IV and ciphertext. Both subkeys
// come from masterKey through HKDF-SHA256. Layout: [0x02||iv||ciphertext||mac].
func SealAuthenticated(masterKey, plaintext []byte) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKeySize, "got %d", len(masterKey))
	}
	encKey, macKey, err := deriveEnvelopeKeys(masterKey)
	if err != nil {
		return nil, err
	}
	defer Zero(encKey)
	defer Zero(macKey)

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "cannot generate iv")
	}
	ct, err := SealCBC(encKey, iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+IVSize+len(ct)+authMacSize)
	out = append(out, authVersion)
	out = append(out, iv...)
	out = append(out, ct...)
	out = append(out, computeMAC(macKey, out)...)
	return out, nil
}

// OpenAuthenticated verifies and decrypts data produced by SealAuthenticated.
func OpenAuthenticated(masterKey, sealed []byte) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKeySize, "got %d", len(masterKey))
	}
	if !IsAuthenticated(sealed) {
		return nil, errors.Wrapf(ErrCiphertextTooShort, "length %d", len(sealed))
	}
	encKey, macKey, err := deriveEnvelopeKeys(masterKey)
	if err != nil {
		return nil, err
	}
	defer Zero(encKey)
	defer Zero(macKey)

	macStart := len(sealed) - authMacSize
	expected := computeMAC(macKey, sealed[:macStart])
	if subtle.ConstantTimeCompare(expected, sealed[macStart:]) != 1 {
		return nil, ErrInvalidMAC
	}
	iv := sealed[1 : 1+IVSize]
	return OpenCBC(encKey, iv, sealed[1+IVSize:macStart])
}

func deriveEnvelopeKeys(masterKey []byte) (encKey, macKey []byte, err error) {
	stream := hkdf.New(sha256.New, masterKey, nil, []byte(authKeysInfo))
	encKey = make([]byte, KeySize)
	macKey = make([]byte, KeySize)
	if _, err = io.ReadFull(stream, encKey); err != nil {
		return nil, nil, errors.Wrap(err, "cannot derive envelope keys")
	}
	if _, err = io.ReadFull(stream, macKey); err != nil {
		Zero(encKey)
		return nil, nil, errors.Wrap(err, "cannot derive envelope keys")
	}
	return encKey, macKey, nil
}

func computeMAC(macKey, data []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(data)
	return mac.Sum(nil)
}
