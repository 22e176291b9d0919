package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisStore caches snapshot entries as JSON values with a server-side TTL.
type RedisStore struct {
	client *goredis.Client
}

// RedisConfig configures the Redis cache store.
type RedisConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// NewRedis creates a Redis-backed cache store and pings the server.
func NewRedis(cfg RedisConfig) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[cache] connected to redis at %s", cfg.Addr)
	return &RedisStore{client: client}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *RedisStore) Client() *goredis.Client { return s.client }

func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil // miss
		}
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Treat a corrupt value as a miss; the next Put overwrites it.
		log.Printf("[cache] dropping corrupt entry at %s: %v", key, err)
		return nil, nil
	}
	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
