// Package cache keeps ingress Idempotency-Key mappings in Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/usecase"
)

const (
	lockPrefix = "idemp:orders:lock:"
	mapPrefix  = "idemp:orders:map:"
)

// RedisIdempotencyStore implements usecase.IdempotencyStore with SETNX claims
// and plain keys for the key-to-order mapping. Both expire after ttl.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisIdempotencyStore creates a new RedisIdempotencyStore.
func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses url (redis://...) and returns a connected client.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperrors.Wrap(err, "failed to ping redis")
	}
	return rdb, nil
}

// TryLock claims key for an in-flight submission.
func (s *RedisIdempotencyStore) TryLock(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockPrefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, unavailable(err, "failed to claim idempotency key")
	}
	return ok, nil
}

// Remember maps key to orderID.
func (s *RedisIdempotencyStore) Remember(ctx context.Context, key, orderID string) error {
	if err := s.rdb.Set(ctx, mapPrefix+key, orderID, s.ttl).Err(); err != nil {
		return unavailable(err, "failed to remember idempotency key")
	}
	return nil
}

// Recall returns the order mapped to key.
func (s *RedisIdempotencyStore) Recall(ctx context.Context, key string) (string, bool, error) {
	orderID, err := s.rdb.Get(ctx, mapPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable(err, "failed to recall idempotency key")
	}
	return orderID, true, nil
}

// Release drops the claim on key.
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, lockPrefix+key).Err(); err != nil {
		return unavailable(err, "failed to release idempotency key")
	}
	return nil
}

// unavailable marks a Redis failure as apperrors.ErrUnavailable.
func unavailable(err error, message string) error {
	return apperrors.Wrap(apperrors.Join(apperrors.ErrUnavailable, err), message)
}

// NoopIdempotencyStore accepts every key and remembers nothing. It is used
// when no Redis URL is configured.
type NoopIdempotencyStore struct{}

// NewNoopIdempotencyStore creates a new NoopIdempotencyStore.
func NewNoopIdempotencyStore() *NoopIdempotencyStore {
	return &NoopIdempotencyStore{}
}

// TryLock always succeeds.
func (NoopIdempotencyStore) TryLock(context.Context, string) (bool, error) { return true, nil }

// Remember does nothing.
func (NoopIdempotencyStore) Remember(context.Context, string, string) error { return nil }

// Recall never finds a key.
func (NoopIdempotencyStore) Recall(context.Context, string) (string, bool, error) {
	return "", false, nil
}

// Release does nothing.
func (NoopIdempotencyStore) Release(context.Context, string) error { return nil }

var (
	_ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ usecase.IdempotencyStore = (*NoopIdempotencyStore)(nil)
)
