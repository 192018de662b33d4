package redis

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"insight-harvest/internal/config"
)

// RedisClient is the thin slice of go-redis this service uses. Keeping it an
// interface lets the store tests stub transport failures.
type RedisClient interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ RedisClient = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

// NewClient builds the client without requiring the server to be reachable:
// the fallback store handles unreachability at call time.
func NewClient(cfg *config.RedisConfig) *redClient {
	var opts *redis.Options
	if strings.Contains(cfg.URL, "://") {
		if parsed, err := redis.ParseURL(cfg.URL); err == nil {
			opts = parsed
		}
	}
	if opts == nil {
		opts = &redis.Options{Addr: cfg.URL}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return &redClient{cli: redis.NewClient(opts)}
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *redClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.cli.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err()
}

func (c *redClient) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.cli.ZRevRange(ctx, key, start, stop).Result()
}

func (c *redClient) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	return c.cli.ZRem(ctx, key, args...).Err()
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redClient) Close() error { return c.cli.Close() }

// IsNil reports whether err is the go-redis missing-key sentinel.
func IsNil(err error) bool { return err == redis.Nil }
