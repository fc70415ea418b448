package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "photoflow:state"

// RedisBackend stores each key as its own Redis string with a sliding TTL.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisBackend(client redis.Cmdable, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

func (b *RedisBackend) Get(ctx context.Context, namespace string, key string) (string, bool, error) {
	value, err := b.client.Get(ctx, b.key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}

	if b.ttl > 0 {
		// Reads keep an active browser alive; a failed touch is not fatal.
		_ = b.client.Expire(ctx, b.key(namespace, key), b.ttl).Err()
	}

	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, namespace string, key string, value string) error {
	if err := b.client.Set(ctx, b.key(namespace, key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, b.key(namespace, key))
	}

	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

func (b *RedisBackend) key(namespace string, key string) string {
	return b.prefix + ":" + namespace + ":" + key
}
