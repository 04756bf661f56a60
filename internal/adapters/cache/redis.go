package cache

import (
	"context"
	"errors"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Redis stores cache entries under a key prefix in a shared Redis.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ domain.Cache = (*Redis)(nil)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects and pings so a bad address fails at startup.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "intellitest:"
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NotFound("cache entry")
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
