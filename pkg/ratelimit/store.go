package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the quota state.
type StateStore interface {
	// Load returns the stored state; ok is false when nothing is stored.
	Load(ctx context.Context) (state State, ok bool, err error)
	Save(ctx context.Context, state State) error
}

// MemoryStore keeps the state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	ok    bool
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements StateStore.
func (m *MemoryStore) Load(context.Context) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.ok, nil
}

// Save implements StateStore.
func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.ok = true
	return nil
}

// DefaultRedisPrefix namespaces the quota keys.
const DefaultRedisPrefix = "storefront:ratelimit:docstore"

// Redis key suffixes.
const (
	redisKeyRemaining  = ":remaining"
	redisKeyResetAt    = ":reset_at"
	redisKeyLastUpdate = ":last_update"
)

// redisStateRetention keeps state around briefly after the window resets.
const redisStateRetention = time.Minute

// RedisStore shares the state between instances through Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ StateStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. An empty prefix selects DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Load implements StateStore.
func (r *RedisStore) Load(ctx context.Context) (State, bool, error) {
	pipe := r.client.Pipeline()
	remainingCmd := pipe.Get(ctx, r.prefix+redisKeyRemaining)
	resetCmd := pipe.Get(ctx, r.prefix+redisKeyResetAt)
	updateCmd := pipe.Get(ctx, r.prefix+redisKeyLastUpdate)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("load rate limit state: %w", err)
	}

	remaining, err := remainingCmd.Int()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("parse remaining: %w", err)
	}

	resetMs, err := resetCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("parse reset timestamp: %w", err)
	}
	updateMs, err := updateCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("parse last update: %w", err)
	}

	state := State{
		Remaining:  remaining,
		ResetAt:    time.UnixMilli(resetMs),
		LastUpdate: time.UnixMilli(updateMs),
	}
	state.UpdateHealth()
	return state, true, nil
}

// Save implements StateStore. Keys expire shortly after the window resets.
func (r *RedisStore) Save(ctx context.Context, state State) error {
	ttl := state.TimeUntilReset(state.LastUpdate) + redisStateRetention

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefix+redisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, r.prefix+redisKeyResetAt, state.ResetAt.UnixMilli(), ttl)
	pipe.Set(ctx, r.prefix+redisKeyLastUpdate, state.LastUpdate.UnixMilli(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
