package vault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by a Vault matches exactly one of these
// with errors.Is.
var (
	ErrInvalidArgument = errors.New("vault: invalid argument")
	ErrNotInitialized  = errors.New("vault: not initialized")
	ErrKeyDerivation   = errors.New("vault: key derivation failed")
	ErrCipher          = errors.New("vault: cipher failure")
	ErrDecode          = errors.New("vault: malformed envelope")
	ErrEncode          = errors.New("vault: envelope encoding failed")
	ErrStorage         = errors.New("vault: local storage fault")
	ErrSync            = errors.New("vault: remote sync fault")
	ErrNotFound        = errors.New("vault: entry not found")
)

// Error records the operation that failed, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func newError(op string, kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", e.Kind, e.Op)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
