package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultNamespace prefixes every backend name written by a Store.
const DefaultNamespace = "storefront:cache"

// Store is the catalog cache. It maps registry keys to entries held in a Backend
// and decides validity lazily on read.
//
// Caching is an optimization only: no Store operation returns an error. Backend
// failures, corrupt records and encoding problems all degrade to a miss (reads)
// or to "nothing cached" (writes).
type Store struct {
	backend   Backend
	namespace string
	now       func() time.Time
	policies  PolicyTable
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithClock replaces time.Now as the source of write and read timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPolicyTable replaces the TTL preset durations.
func WithPolicyTable(table PolicyTable) Option {
	return func(s *Store) {
		s.policies = table
	}
}

// NewStore creates a cache store writing into backend.
func NewStore(backend Backend, opts ...Option) *Store {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	s := &Store{
		backend:   backend,
		namespace: DefaultNamespace,
		now:       time.Now,
		policies:  DefaultPolicyTable(),
		logger:    log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the prefix of every backend name this store owns.
func (s *Store) Namespace() string {
	return s.namespace
}

// Policies returns the TTL preset table.
func (s *Store) Policies() PolicyTable {
	return s.policies
}

// Get decodes the valid entry stored under key into dst and reports whether it did.
// An expired entry is removed from the backend before reporting a miss.
// The contents of dst are unspecified on a miss.
func (s *Store) Get(ctx context.Context, key Key, dst any) bool {
	entry, raw, ok := s.load(ctx, key)
	if !ok {
		return false
	}

	if entry.IsExpired(s.now()) {
		s.evict(ctx, key, raw)
		CacheMisses.WithLabelValues(key.String(), missExpired).Inc()
		s.logger.Debug().Str("key", key.String()).Msg("Cache entry expired")
		return false
	}

	if err := json.Unmarshal(entry.Value, dst); err != nil {
		CacheMisses.WithLabelValues(key.String(), missCorrupt).Inc()
		s.logger.Debug().Err(err).Str("key", key.String()).Msg("Cache payload does not decode")
		return false
	}

	CacheHits.WithLabelValues(key.String()).Inc()
	s.logger.Debug().
		Str("key", key.String()).
		Dur("remaining", entry.Remaining(s.now())).
		Msg("Cache hit")
	return true
}

// Set writes value under key with the lifetime ttl, replacing any previous entry.
// A lifetime that resolves below one millisecond caches nothing and removes the
// previous entry. Failed writes also remove the previous entry so an older value
// never outlives a newer write.
func (s *Store) Set(ctx context.Context, key Key, value any, ttl Lifetime) {
	if !key.Valid() {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Error().Str("key", key.String()).Msg("Refusing to cache under unregistered key")
		return
	}

	var duration time.Duration
	if ttl != nil {
		duration = ttl.resolve(s.policies)
	}
	if duration < time.Millisecond {
		s.discard(ctx, key)
		s.logger.Debug().Str("key", key.String()).Dur("ttl", duration).Msg("Non-positive ttl, not caching")
		return
	}

	data, err := json.Marshal(NewEntry(value, s.now(), duration))
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to encode cache entry")
		s.discard(ctx, key)
		return
	}

	if err := s.backend.Set(ctx, s.name(key), data); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to write cache entry")
		s.discard(ctx, key)
		return
	}

	CacheWrites.WithLabelValues(key.String()).Inc()
	s.logger.Debug().
		Str("key", key.String()).
		Dur("ttl", duration).
		Int("bytes", len(data)).
		Msg("Cached entry")
}

// Invalidate removes the entry under key. It is a no-op when nothing is stored.
func (s *Store) Invalidate(ctx context.Context, key Key) {
	if !key.Valid() {
		return
	}
	if err := s.backend.Remove(ctx, s.name(key)); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to invalidate cache entry")
		return
	}
	s.logger.Debug().Str("key", key.String()).Msg("Invalidated cache entry")
}

// Clear removes the record of every registered key under the store namespace.
// Only names the store itself writes are touched, so records of other
// namespaces, including nested ones such as "<namespace>:sub", survive.
func (s *Store) Clear(ctx context.Context) {
	removed := 0
	for _, key := range Keys() {
		name := s.name(key)
		if err := s.backend.Remove(ctx, name); err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			s.logger.Warn().Err(err).Str("name", name).Msg("Failed to remove cache entry")
			continue
		}
		removed++
	}

	s.logger.Debug().Int("keys", removed).Msg("Cleared cache")
}

// EntryInfo describes a stored entry without its payload.
type EntryInfo struct {
	Key       Key           `json:"key"`
	Name      string        `json:"name"`
	StoredAt  time.Time     `json:"stored_at"`
	TTL       time.Duration `json:"ttl"`
	Remaining time.Duration `json:"remaining"`
	Expired   bool          `json:"expired"`
	Size      int           `json:"size"`
}

// Inspect reports metadata about the record under key without evicting it.
// Corrupt records and backend failures report false.
func (s *Store) Inspect(ctx context.Context, key Key) (EntryInfo, bool) {
	if !key.Valid() {
		return EntryInfo{}, false
	}
	data, err := s.backend.Get(ctx, s.name(key))
	if err != nil {
		return EntryInfo{}, false
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return EntryInfo{}, false
	}

	now := s.now()
	return EntryInfo{
		Key:       key,
		Name:      s.name(key),
		StoredAt:  entry.StoredTime(),
		TTL:       time.Duration(entry.TTLMs) * time.Millisecond,
		Remaining: entry.Remaining(now),
		Expired:   entry.IsExpired(now),
		Size:      len(data),
	}, true
}

// load fetches and decodes the envelope stored under key, recording the miss
// reason when there is nothing usable. The raw record is returned alongside.
func (s *Store) load(ctx context.Context, key Key) (Entry[json.RawMessage], []byte, bool) {
	if !key.Valid() {
		CacheMisses.WithLabelValues(key.String(), missUnknownKey).Inc()
		s.logger.Error().Str("key", key.String()).Msg("Cache read with unregistered key")
		return Entry[json.RawMessage]{}, nil, false
	}

	data, err := s.backend.Get(ctx, s.name(key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			CacheMisses.WithLabelValues(key.String(), missAbsent).Inc()
			s.logger.Debug().Str("key", key.String()).Msg("Cache miss")
			return Entry[json.RawMessage]{}, nil, false
		}
		CacheErrors.WithLabelValues("get").Inc()
		CacheMisses.WithLabelValues(key.String(), missUnavailable).Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache backend unavailable")
		return Entry[json.RawMessage]{}, nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheMisses.WithLabelValues(key.String(), missCorrupt).Inc()
		s.logger.Debug().Err(err).Str("key", key.String()).Msg("Ignoring corrupt cache entry")
		return Entry[json.RawMessage]{}, nil, false
	}
	return entry, data, true
}

// evict removes the expired record raw from key. Backends that support it
// delete only while the record is unchanged, so a concurrent Set survives.
// Other backends delete unconditionally and the racing write costs one miss.
func (s *Store) evict(ctx context.Context, key Key, raw []byte) {
	name := s.name(key)

	var err error
	removed := true
	if cr, ok := s.backend.(ConditionalRemover); ok {
		removed, err = cr.RemoveIf(ctx, name, raw)
	} else {
		err = s.backend.Remove(ctx, name)
	}

	switch {
	case err != nil:
		CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to remove expired cache entry")
	case removed:
		CacheEvictions.WithLabelValues(key.String()).Inc()
	default:
		s.logger.Debug().Str("key", key.String()).Msg("Expired cache entry was rewritten before eviction")
	}
}

// discard removes the entry under key, best effort.
func (s *Store) discard(ctx context.Context, key Key) {
	if err := s.backend.Remove(ctx, s.name(key)); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to drop previous cache entry")
	}
}

func (s *Store) name(key Key) string {
	return storageName(s.namespace, key)
}

var errMalformedEntry = errors.New("malformed cache entry")

// decodeEntry parses the serialized envelope, leaving the payload undecoded.
func decodeEntry(data []byte) (Entry[json.RawMessage], error) {
	var entry Entry[json.RawMessage]
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	if entry.Value == nil || entry.StoredAt <= 0 || entry.TTLMs <= 0 {
		return entry, errMalformedEntry
	}
	return entry, nil
}
