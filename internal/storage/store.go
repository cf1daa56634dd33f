package storage

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound reports that no record exists for an id. Any other error
	// from a store is a fault, not absence.
	ErrNotFound = errors.New("storage: entry not found")
	// ErrClosed is returned by a LocalStore used outside Open/Close.
	ErrClosed = errors.New("storage: store is not open")
	// ErrMalformedRecord is returned when a stored record has no envelope.
	ErrMalformedRecord = errors.New("storage: malformed entry record")
)

// EntryStore is a durable map from entry id to sealed envelope text. Put has
// upsert semantics; the last writer for an id wins.
type EntryStore interface {
	Get(ctx context.Context, id string) (string, error)
	Put(ctx context.Context, id, envelope string) error
}

// LocalStore is an EntryStore with an explicit lifecycle, opened when a vault
// session starts and closed when it ends.
type LocalStore interface {
	EntryStore
	Open(ctx context.Context) error
	Close() error
}

// Record is the wire and document shape of a stored entry.
type Record struct {
	ID        string `json:"id"`
	Envelope  string `json:"envelope"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

func checkID(id string) error {
	if id == "" {
		return errors.New("storage: empty id")
	}
	return nil
}
