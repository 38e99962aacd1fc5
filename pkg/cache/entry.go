package cache

import (
	"time"
)

// Entry is a single cached record as it is serialized into the storage backend.
type Entry[T any] struct {
	// Value is the cached payload, stored without transformation
	Value T `json:"value"`

	// StoredAt is the write time in epoch milliseconds
	StoredAt int64 `json:"storedAt"`

	// TTLMs is the lifetime in milliseconds after StoredAt
	TTLMs int64 `json:"ttlMs"`
}

// NewEntry creates an entry stamped with storedAt and the given lifetime.
func NewEntry[T any](value T, storedAt time.Time, ttl time.Duration) Entry[T] {
	return Entry[T]{
		Value:    value,
		StoredAt: storedAt.UnixMilli(),
		TTLMs:    ttl.Milliseconds(),
	}
}

// IsExpired reports whether now - storedAt > ttl.
// The boundary itself is still valid.
func (e Entry[T]) IsExpired(now time.Time) bool {
	return now.UnixMilli()-e.StoredAt > e.TTLMs
}

// Remaining returns the time until expiration.
// Returns 0 if already expired.
func (e Entry[T]) Remaining(now time.Time) time.Duration {
	left := time.Duration(e.StoredAt+e.TTLMs-now.UnixMilli()) * time.Millisecond
	if left < 0 {
		return 0
	}
	return left
}

// StoredTime returns StoredAt as a time.Time.
func (e Entry[T]) StoredTime() time.Time {
	return time.UnixMilli(e.StoredAt)
}
