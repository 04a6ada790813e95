package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider pings the redis instance backing dedupe, the dead
// letter stream and scheduler locks.
type RedisProvider struct {
	name       string
	client     redis.UniversalClient
	degradedMS int64
}

// RedisProviderConfig configures the Redis health provider
type RedisProviderConfig struct {
	Name       string
	Client     redis.UniversalClient
	DegradedMS int64 // Latency threshold for degraded status (default: 100ms)
}

// NewRedisProvider creates a new Redis health provider
func NewRedisProvider(config RedisProviderConfig) *RedisProvider {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DegradedMS == 0 {
		config.DegradedMS = 100
	}

	return &RedisProvider{
		name:       config.Name,
		client:     config.Client,
		degradedMS: config.DegradedMS,
	}
}

// Name returns the provider name
func (p *RedisProvider) Name() string {
	return p.name
}

// Check measures PING latency and reports pool statistics.
func (p *RedisProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.name,
		CheckedAt: time.Now(),
		Details:   make(map[string]interface{}),
	}

	start := time.Now()
	pong, err := p.client.Ping(ctx).Result()
	latency := time.Since(start)

	result.Details["latency_ms"] = latency.Milliseconds()

	if err != nil {
		result.Status = StatusDown
		result.Error = fmt.Sprintf("failed to ping redis: %v", err)
		result.Details["error"] = err.Error()
		return result
	}

	result.Details["response"] = pong

	if client, ok := p.client.(*redis.Client); ok {
		stats := client.PoolStats()
		result.Details["pool_hits"] = stats.Hits
		result.Details["pool_misses"] = stats.Misses
		result.Details["pool_timeouts"] = stats.Timeouts
		result.Details["total_conns"] = stats.TotalConns
		result.Details["idle_conns"] = stats.IdleConns
		result.Details["stale_conns"] = stats.StaleConns
	}

	if latency.Milliseconds() > p.degradedMS {
		result.Status = StatusDegraded
		result.Details["message"] = "high latency detected"
		return result
	}

	result.Status = StatusUp
	return result
}
