package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/deal-scanner/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore is the Redis-backed DurableStore implementation
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store. The client connects
// lazily, so the store is usable even when Redis is unreachable at
// construction time; use Ping to probe connectivity.
func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	return &RedisStore{client: client}
}

// NewRedisStoreFromClient wraps an existing client. Used in tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements DurableStore via MGET
func (r *RedisStore) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	result := make(map[string][]byte, len(keys))
	for i, value := range values {
		if value == nil {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("redis mget: unexpected value type %T for key %s", value, keys[i])
		}
		result[keys[i]] = []byte(s)
	}
	return result, nil
}

// Set implements DurableStore via MSET
func (r *RedisStore) Set(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	pairs := make([]interface{}, 0, len(entries)*2)
	for key, value := range entries {
		pairs = append(pairs, key, value)
	}

	if err := r.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("redis mset: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
