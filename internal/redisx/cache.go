package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// StatusCache fronts the order-status lookups so the hot GET path does not
// hit Postgres for every poll of the "where is my order" page.
type StatusCache interface {
	GetStatus(ctx context.Context, code string) (string, error)
	SetStatus(ctx context.Context, code, payload string) error
}

type RedisStatusCache struct{ R *redis.Client }

func (c *RedisStatusCache) GetStatus(ctx context.Context, code string) (string, error) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return s, err
}

func (c *RedisStatusCache) SetStatus(ctx context.Context, code, payload string) error {
	return c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, code), payload, TTLStatusCache).Err()
}
