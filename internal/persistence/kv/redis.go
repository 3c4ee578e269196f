package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/viralrisk/internal/persistence"
)

// RedisConfig configures the Redis-backed store
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisStore implements persistence.KeyValueStore on Redis strings and lists.
// Values are kept without expiry.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

var _ persistence.KeyValueStore = (*RedisStore)(nil)

// Dial connects to Redis and verifies the connection
func Dial(cfg RedisConfig) (*RedisStore, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStore(rdb, cfg.KeyPrefix), rdb, nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

// Get returns found=false on a missing key
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set stores a value without expiry
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// ListAppend pushes to the tail of a list
func (r *RedisStore) ListAppend(ctx context.Context, key string, value string) error {
	if err := r.client.RPush(ctx, r.key(key), value).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

// ListRange mirrors LRANGE
func (r *RedisStore) ListRange(ctx context.Context, key string, start, end int64) ([]string, error) {
	vals, err := r.client.LRange(ctx, r.key(key), start, end).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return vals, nil
}
