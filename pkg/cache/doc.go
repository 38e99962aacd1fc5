// Package cache provides the storefront catalog cache: a TTL cache with a
// closed key namespace, named TTL presets and pluggable session storage.
//
// The cache fronts read-heavy catalog data (the full product list, the new
// arrivals subset and the current time sale) so repeat page views within a
// session skip the document store round trip.
//
// # Basic Usage
//
//	// Session-scoped in-memory storage
//	backend := cache.NewMemoryBackend(cache.MemoryConfig{SessionTTL: 30 * time.Minute})
//
//	// Create the store once per process and pass it to consumers
//	store := cache.NewStore(backend)
//
//	// Read; on a miss fetch and write back
//	products, ok := cache.Get[[]Product](ctx, store, cache.KeyProductsAll)
//	if !ok {
//		products, err = source.ListProducts(ctx)
//		if err != nil {
//			return err
//		}
//		cache.Set(ctx, store, cache.KeyProductsAll, products, cache.PolicyMedium)
//	}
//
// # Typed Slots
//
//	newArrivals := cache.NewSlot[[]Product](store, cache.KeyNewArrivals, cache.PolicyMedium)
//	items, err := newArrivals.GetOrFetch(ctx, loadNewArrivals)
//
// # Expiration
//
// Each entry records its write time (epoch ms) and TTL. An entry is valid while
// now - storedAt <= ttl. Validity is checked on read only; an expired entry is
// removed from the backend by the read that finds it. There is no background
// sweeper in the store.
//
// # Failure Handling
//
// Store operations never return errors. A failing or full backend, a corrupt
// record, or a payload of the wrong shape behaves exactly like an empty cache.
// Corrupt records are not scrubbed; the next write to the key replaces them.
//
// # Backends
//
//   - MemoryBackend - process-local session storage (ttlcache)
//   - RedisBackend - shared Redis, records expire with the session TTL
//   - NoopBackend - caching disabled
//
// Separate processes or sessions using separate backends do not see each
// other's writes or invalidations.
//
// # Concurrency
//
// Store methods are safe for concurrent use and racing writes to one key are
// last-write-wins. The read that evicts an expired entry deletes it only while
// it is unchanged on backends implementing ConditionalRemover (both built-in
// backends do), so a write landing between the read and the eviction is kept.
//
// # Metrics
//
//   - storefront_cache_hits_total{key}
//   - storefront_cache_misses_total{key,reason}
//   - storefront_cache_writes_total{key}
//   - storefront_cache_evictions_total{key}
//   - storefront_cache_errors_total{operation}
package cache
