package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"
)

// IVSize is the CBC initialization vector length (one AES block).
const IVSize = aes.BlockSize

var (
	ErrInvalidKeySize = errors.New("crypto: key must be 32 bytes")
	ErrInvalidIVSize  = errors.New("crypto: iv must be 16 bytes")
	ErrCiphertextSize = errors.New("crypto: ciphertext is not a whole number of blocks")
	ErrBadPadding     = errors.New("crypto: invalid padding")
)

// SealCBC encrypts plaintext with AES-256-CBC and PKCS#7 padding. The result
// is always len(plaintext) rounded down to a block boundary plus one block.
func SealCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := newCBCBlock(key, iv)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext)
	defer Zero(padded)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// OpenCBC reverses SealCBC. A wrong key is only detected when the padding
// happens not to check out; there is no integrity tag.
func OpenCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newCBCBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.Wrapf(ErrCiphertextSize, "length %d", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	pt, err := pkcs7Unpad(out)
	if err != nil {
		Zero(out)
		return nil, err
	}
	return pt, nil
}

func newCBCBlock(key, iv []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKeySize, "got %d", len(key))
	}
	if len(iv) != IVSize {
		return nil, errors.Wrapf(ErrInvalidIVSize, "got %d", len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create aes block cipher")
	}
	return block, nil
}

func pkcs7Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
