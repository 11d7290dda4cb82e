package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by backends when no record exists for a key.
var ErrNotFound = errors.New("no stored record")

// Backend reads and writes token records to persistent storage.
type Backend interface {
	// Init prepares the backend for use. It must be idempotent.
	Init(ctx context.Context) error

	// Read returns the record stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) (Record, error)

	// Write replaces the record stored under key.
	Write(ctx context.Context, key string, record Record) error

	// Delete removes the record stored under key. Deleting a missing record is not an error.
	Delete(ctx context.Context, key string) error
}
