package vault

import (
	cr "lockr/internal/crypto"
)

// session is the derived key material of one initialized vault. The arrays
// are never copied out of the struct, so wipe reaches every byte.
type session struct {
	key    [cr.KeySize]byte
	iv     [cr.IVSize]byte
	ready  bool
	pinned bool
}

// derive fills key from the password and resets iv to the all-zero
// session IV. ready is left to the caller.
func (s *session) derive(password []byte) error {
	key, err := cr.DeriveKey(password)
	if err != nil {
		return err
	}
	copy(s.key[:], key)
	cr.Zero(key)
	s.iv = [cr.IVSize]byte{}
	s.pinned = cr.LockMemory(s.key[:]) == nil
	return nil
}

func (s *session) wipe() {
	cr.Zero(s.key[:])
	cr.Zero(s.iv[:])
	if s.pinned {
		_ = cr.UnlockMemory(s.key[:])
		s.pinned = false
	}
	s.ready = false
}
