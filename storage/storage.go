package storage

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrQuotaExceeded marks Save failures caused by storage quota or capacity
// exhaustion, as opposed to I/O or encoding problems. Callers check it with
// errors.Is to decide whether eviction-based recovery is worth attempting.
var ErrQuotaExceeded = errors.New("storage: quota exceeded")

// IsQuotaExceeded reports whether err was caused by quota exhaustion.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// Store is the durable key/value byte store the cache persists namespace
// blobs into. Implementations must be safe for concurrent use.
//
// Keys are opaque strings; the cache layer derives them from a fixed prefix
// plus the namespace name. Values are whole-blob writes: Save replaces the
// previous value atomically from the reader's point of view.
type Store interface {
	// Load returns the value for key. Absent keys return (nil, false, nil),
	// not an error.
	Load(ctx context.Context, key string) ([]byte, bool, error)

	// Save writes the value for key, replacing any previous value. Failures
	// caused by capacity exhaustion satisfy errors.Is(err, ErrQuotaExceeded).
	Save(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns every stored key with the given prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
