package tmdb

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisResponsePrefix = "catalog:tmdb:"

// ResponseCache stores raw upstream bodies keyed by path and query.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

// RedisResponseCache keeps upstream bodies in Redis for the freshness window.
type RedisResponseCache struct {
	client redis.UniversalClient
}

func NewRedisResponseCache(client redis.UniversalClient) *RedisResponseCache {
	return &RedisResponseCache{client: client}
}

func (r *RedisResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisResponsePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisResponseCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	return r.client.Set(ctx, redisResponsePrefix+key, body, ttl).Err()
}

func (r *RedisResponseCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
