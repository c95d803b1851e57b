package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces wallet entries away from other users of the same
// Redis instance.
const keyPrefix = "walletkit:"

// RedisStore persists script-environment storage in Redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, keyPrefix+key, value, 0).Err()
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
