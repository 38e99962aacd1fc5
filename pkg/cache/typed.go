package cache

import (
	"context"
)

// FetchFn loads a value from the source of truth after a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Get is the typed form of Store.Get. It returns the zero value on a miss.
func Get[T any](ctx context.Context, s *Store, key Key) (T, bool) {
	var value T
	if !s.Get(ctx, key, &value) {
		var zero T
		return zero, false
	}
	return value, true
}

// Set is the typed form of Store.Set.
func Set[T any](ctx context.Context, s *Store, key Key, value T, ttl Lifetime) {
	s.Set(ctx, key, value, ttl)
}

// Slot binds one registry key to one payload type and lifetime, so every
// reader and writer of that key agrees on what is stored there.
type Slot[T any] struct {
	store *Store
	key   Key
	ttl   Lifetime
}

// NewSlot creates a typed binding of key in s.
func NewSlot[T any](s *Store, key Key, ttl Lifetime) Slot[T] {
	if s == nil {
		panic("cache store cannot be nil")
	}
	return Slot[T]{store: s, key: key, ttl: ttl}
}

// Key returns the bound key.
func (sl Slot[T]) Key() Key {
	return sl.key
}

// Get returns the cached value, if valid.
func (sl Slot[T]) Get(ctx context.Context) (T, bool) {
	return Get[T](ctx, sl.store, sl.key)
}

// Set replaces the cached value using the slot lifetime.
func (sl Slot[T]) Set(ctx context.Context, value T) {
	sl.store.Set(ctx, sl.key, value, sl.ttl)
}

// Invalidate drops the cached value.
func (sl Slot[T]) Invalidate(ctx context.Context) {
	sl.store.Invalidate(ctx, sl.key)
}

// GetOrFetch returns the cached value on a hit. On a miss it calls fetch,
// caches a successful result and returns it. Fetch errors are returned as is
// and nothing is cached.
func (sl Slot[T]) GetOrFetch(ctx context.Context, fetch FetchFn[T]) (T, error) {
	if value, ok := sl.Get(ctx); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	sl.Set(ctx, value)
	return value, nil
}
