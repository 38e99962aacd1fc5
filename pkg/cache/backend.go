package cache

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the backend holds no record under the requested name
	ErrNotFound = errors.New("cache record not found")

	// ErrQuotaExceeded indicates the backend refused a write because of its size limits
	ErrQuotaExceeded = errors.New("cache quota exceeded")
)

// Backend is the key-value storage medium a Store writes serialized entries into.
// It persists records for the lifetime of one session and offers no transactions.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the raw record stored under name, or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Set stores data under name, replacing any previous record.
	Set(ctx context.Context, name string, data []byte) error

	// Remove deletes the record under name. Removing a missing record is not an error.
	Remove(ctx context.Context, name string) error
}

// ConditionalRemover is implemented by backends that can delete a record only
// while it still holds the expected contents. The Store evicts expired entries
// through it so a write racing the eviction is not lost.
type ConditionalRemover interface {
	// RemoveIf deletes the record under name if it equals expected and
	// reports whether it did.
	RemoveIf(ctx context.Context, name string, expected []byte) (bool, error)
}

// NoopBackend is a backend that doesn't store anything.
// It is used when caching is disabled: every read is a miss.
type NoopBackend struct{}

var _ Backend = NoopBackend{}

// Get always returns ErrNotFound.
func (NoopBackend) Get(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}

// Set discards data.
func (NoopBackend) Set(context.Context, string, []byte) error {
	return nil
}

// Remove does nothing.
func (NoopBackend) Remove(context.Context, string) error {
	return nil
}
