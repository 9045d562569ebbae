package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "googler:session:"

// RedisStore persists sessions as JSON strings with a Redis TTL matching the record expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at rawURL (redis:// or rediss://) and pings it.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("session redis: URL is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("session redis: parse URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session redis: ping failed: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Save stores record with an expiry derived from record.ExpiresAt.
func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	if err := validateRecord("session redis", record); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session redis: marshal record: %w", err)
	}
	var ttl time.Duration
	if !record.ExpiresAt.IsZero() {
		ttl = record.TTL(time.Now())
		if ttl <= 0 {
			return nil
		}
	}
	if err = s.client.Set(ctx, s.prefix+record.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("session redis: set: %w", err)
	}
	return nil
}

// Load returns the record with id.
func (s *RedisStore) Load(ctx context.Context, id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session redis: get: %w", err)
	}
	record := &Record{}
	if err = json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("session redis: unmarshal record: %w", err)
	}
	if record.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return record, nil
}
