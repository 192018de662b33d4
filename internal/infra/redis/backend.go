package redis

import (
	"context"
	"fmt"
	"time"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/ports/repository"
)

var _ repository.Backend = (*Backend)(nil)

// Backend implements the store contract over Redis: plain SET/GET with
// native TTL for records, a ZSET for the recency index.
type Backend struct {
	client RedisClient
}

func NewBackend(client RedisClient) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return "", domain.ErrNotFound
		}
		return "", unavailable("get", err)
	}
	return v, nil
}

// IndexAdd ignores the TTL: ZSET members carry no native expiry, so members
// outliving their record are pruned lazily when a listing no longer resolves
// them.
func (b *Backend) IndexAdd(ctx context.Context, indexKey, member string, score float64, _ time.Duration) error {
	if err := b.client.ZAdd(ctx, indexKey, score, member); err != nil {
		return unavailable("zadd", err)
	}
	return nil
}

func (b *Backend) IndexRange(ctx context.Context, indexKey string, offset, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := b.client.ZRevRange(ctx, indexKey, offset, offset+limit-1)
	if err != nil {
		return nil, unavailable("zrevrange", err)
	}
	return members, nil
}

func (b *Backend) IndexRemove(ctx context.Context, indexKey, member string) error {
	if err := b.client.ZRem(ctx, indexKey, member); err != nil {
		return unavailable("zrem", err)
	}
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (b *Backend) Persistent() bool { return true }

// Any transport-level failure is surfaced as ErrBackendUnavailable so the
// fallback store can classify it without knowing go-redis error types.
func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s: %v: %w", op, err, domain.ErrBackendUnavailable)
}
