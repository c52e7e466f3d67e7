package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores projections as plain string values under a key prefix.
// A TTL of zero keeps snapshots until explicitly removed.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis describes the newredis operation and its observable behavior.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client must not be nil")
	}
	if prefix == "" {
		prefix = "authsession"
	}
	if ttl < 0 {
		return nil, errors.New("ttl must not be negative")
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}, nil
}

// Get describes the get operation and its observable behavior.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set describes the set operation and its observable behavior.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

// Remove describes the remove operation and its observable behavior.
// Removing an absent key is not an error.
func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + key
}
