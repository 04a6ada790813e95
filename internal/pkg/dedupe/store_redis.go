package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store on Redis so dedupe spans processes
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "crawld:dedupe"
	}
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *redisStore) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Load retrieves an entry by key
func (s *redisStore) Load(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.makeKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// TryBegin atomically claims the key via SETNX
func (s *redisStore) TryBegin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	entry := Entry{
		Key:       key,
		State:     StateInFlight,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("marshal entry: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, s.makeKey(key), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return claimed, nil
}

// SaveResult records a completed fetch, replacing the in-flight claim
func (s *redisStore) SaveResult(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	now := time.Now()
	entry := Entry{
		Key:       key,
		State:     StateDone,
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, s.makeKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// SaveError records a failed fetch, replacing the in-flight claim
func (s *redisStore) SaveError(ctx context.Context, key string, errMsg string, ttl time.Duration) error {
	now := time.Now()
	entry := Entry{
		Key:       key,
		State:     StateFailed,
		ErrorMsg:  errMsg,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, s.makeKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
