package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var (
	_ driven.KVStore    = (*Store)(nil)
	_ driven.GetDeleter = (*Store)(nil)
)

// Store implements driven.KVStore using Redis.
// Entries rely on Redis TTL for expiration.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis-backed Store
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Set stores value under key, replacing any previous value and TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidInput)
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Get returns the value under key or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// getDelScript reads and removes a key in one step. It works on servers
// older than Redis 6.2, which lack GETDEL.
var getDelScript = redis.NewScript(`
	local v = redis.call("get", KEYS[1])
	if v then
		redis.call("del", KEYS[1])
	end
	return v
`)

// GetDel atomically returns and removes the value under key.
func (s *Store) GetDel(ctx context.Context, key string) ([]byte, error) {
	v, err := getDelScript.Run(ctx, s.client, []string{key}).Text()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take %s: %w", key, err)
	}
	return []byte(v), nil
}

// Ping checks if the Redis backend is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
