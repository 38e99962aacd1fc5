package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores records in Redis.
// Each record carries SessionTTL as its Redis expiry so an abandoned session
// does not linger; entry validity is still decided by the Store.
type RedisBackend struct {
	redis      *redis.Client
	sessionTTL time.Duration
}

var (
	_ Backend            = (*RedisBackend)(nil)
	_ ConditionalRemover = (*RedisBackend)(nil)
)

// removeIfScript deletes KEYS[1] only while it still holds ARGV[1].
var removeIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisBackend creates a backend on top of an existing Redis client.
// A zero sessionTTL stores records without a Redis expiry.
func NewRedisBackend(redisClient *redis.Client, sessionTTL time.Duration) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisBackend{
		redis:      redisClient,
		sessionTTL: sessionTTL,
	}
}

// Get retrieves the record stored under name.
func (r *RedisBackend) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := r.redis.Get(ctx, name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores data under name.
func (r *RedisBackend) Set(ctx context.Context, name string, data []byte) error {
	if err := r.redis.Set(ctx, name, data, r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Remove deletes the record under name.
func (r *RedisBackend) Remove(ctx context.Context, name string) error {
	if err := r.redis.Del(ctx, name).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// RemoveIf deletes the record under name only while it equals expected.
// The comparison and delete run atomically as a Lua script.
func (r *RedisBackend) RemoveIf(ctx context.Context, name string, expected []byte) (bool, error) {
	n, err := removeIfScript.Run(ctx, r.redis, []string{name}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("redis remove if: %w", err)
	}
	return n == 1, nil
}

// Ping checks that Redis is reachable.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}
