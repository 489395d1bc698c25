package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/mintbox/core"
)

// RedisSessionStore is a Redis implementation of the SessionStore interface
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionStore creates a new Redis session store
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: "mintbox:session:",
	}
}

func (s *RedisSessionStore) key(address string) string {
	return s.prefix + core.NormalizeAddress(address)
}

// Put stores the refresh token in Redis with expiration, overwriting any previous one
func (s *RedisSessionStore) Put(ctx context.Context, address, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(address), token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w: %v", core.ErrSessionStore, err)
	}
	return nil
}

// Get returns the refresh token stored for address
func (s *RedisSessionStore) Get(ctx context.Context, address string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w: %v", core.ErrSessionStore, err)
	}
	return val, true, nil
}

// Delete removes the session for address
func (s *RedisSessionStore) Delete(ctx context.Context, address string) (int64, error) {
	n, err := s.client.Del(ctx, s.key(address)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete session: %w: %v", core.ErrSessionStore, err)
	}
	return n, nil
}
