//go:build linux || darwin

package crypto

import "golang.org/x/sys/unix"

// LockMemory pins b in RAM so key material is never written to swap.
func LockMemory(b []byte) error { return unix.Mlock(b) }

// UnlockMemory releases a LockMemory pin.
func UnlockMemory(b []byte) error { return unix.Munlock(b) }
