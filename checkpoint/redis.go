package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-parts/models"
)

const unitKeyPrefix = "checkpoint:unit:"

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps checkpoints in Redis so several hosts can share one run.
type RedisStore struct {
	client RedisClient
	prefix string
}

// NewRedisStore wraps client. Keys are namespaced by runDate so separate
// days never collide.
func NewRedisStore(client RedisClient, runDate string) *RedisStore {
	prefix := unitKeyPrefix
	if runDate != "" {
		prefix += runDate + ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) generateKey(key string) string {
	return s.prefix + key
}

// Has checks for the key with EXISTS.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.generateKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n == 1, nil
}

// Load fetches and decodes the stored result.
func (s *RedisStore) Load(ctx context.Context, key string) (*models.RunResult, error) {
	data, err := s.client.Get(ctx, s.generateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decode(key, data)
}

// Save stores the result without expiry; SET replaces atomically.
func (s *RedisStore) Save(ctx context.Context, key string, result *models.RunResult) error {
	data, err := encode(result)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.generateKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
