package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crawld/internal/pkg/dispatch"

	"github.com/redis/go-redis/v9"
)

// RedisPool shares one credential set across processes. Members live in
// a hash, rotation uses an INCR cursor, and quarantine marks are plain
// keys with a TTL so they expire on their own.
type RedisPool struct {
	client     *redis.Client
	prefix     string
	quarantine time.Duration
}

// NewRedisPool creates a redis-backed pool
func NewRedisPool(client *redis.Client, prefix string, quarantine time.Duration) *RedisPool {
	if prefix == "" {
		prefix = "crawld:pool"
	}
	return &RedisPool{
		client:     client,
		prefix:     prefix,
		quarantine: quarantine,
	}
}

func (p *RedisPool) membersKey() string { return p.prefix + ":members" }
func (p *RedisPool) cursorKey() string  { return p.prefix + ":cursor" }

func (p *RedisPool) quarantineKey(id string) string {
	return fmt.Sprintf("%s:quarantine:%s", p.prefix, id)
}

func (p *RedisPool) failuresKey(id string) string {
	return fmt.Sprintf("%s:failures:%s", p.prefix, id)
}

// member is the stored shape of a pool resource
type member struct {
	Value string `json:"value"`
	Proxy string `json:"proxy,omitempty"`
}

// Add puts a resource into rotation
func (p *RedisPool) Add(ctx context.Context, res dispatch.Resource) error {
	data, err := json.Marshal(member{Value: res.Value, Proxy: res.Proxy})
	if err != nil {
		return fmt.Errorf("marshal pool member: %w", err)
	}

	added, err := p.client.HSetNX(ctx, p.membersKey(), res.ID, data).Result()
	if err != nil {
		return fmt.Errorf("redis hsetnx failed: %w", err)
	}
	if !added {
		return ErrDuplicateID
	}
	return nil
}

// Remove takes a resource out of rotation permanently
func (p *RedisPool) Remove(ctx context.Context, id string) error {
	pipe := p.client.Pipeline()
	pipe.HDel(ctx, p.membersKey(), id)
	pipe.Del(ctx, p.quarantineKey(id), p.failuresKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the next non-quarantined resource in rotation, or nil, nil
// when the pool is empty or fully quarantined
func (p *RedisPool) Get(ctx context.Context) (*dispatch.Resource, error) {
	ids, err := p.client.HKeys(ctx, p.membersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := p.client.Incr(ctx, p.cursorKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis incr failed: %w", err)
	}

	n := int64(len(ids))
	for i := int64(0); i < n; i++ {
		id := ids[(cursor+i)%n]

		quarantined, err := p.client.Exists(ctx, p.quarantineKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis exists failed: %w", err)
		}
		if quarantined > 0 {
			continue
		}

		data, err := p.client.HGet(ctx, p.membersKey(), id).Bytes()
		if err != nil {
			if err == redis.Nil {
				// Removed between HKeys and HGet
				continue
			}
			return nil, fmt.Errorf("redis hget failed: %w", err)
		}

		var m member
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal pool member: %w", err)
		}
		return &dispatch.Resource{ID: id, Value: m.Value, Proxy: m.Proxy}, nil
	}
	return nil, nil
}

// MarkSuccess clears the failure count for a resource
func (p *RedisPool) MarkSuccess(ctx context.Context, id string) error {
	return p.client.Del(ctx, p.failuresKey(id)).Err()
}

// MarkFailed records a failure and quarantines the resource until the
// quarantine TTL expires
func (p *RedisPool) MarkFailed(ctx context.Context, id string) error {
	pipe := p.client.Pipeline()
	pipe.Incr(ctx, p.failuresKey(id))
	pipe.Set(ctx, p.quarantineKey(id), "1", p.quarantine)
	_, err := pipe.Exec(ctx)
	return err
}

// Len returns the number of resources in the pool
func (p *RedisPool) Len(ctx context.Context) (int64, error) {
	return p.client.HLen(ctx, p.membersKey()).Result()
}
