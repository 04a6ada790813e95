package rate

import (
	"fmt"
	"time"
)

// LimiterConfig holds configuration for rate limiters
type LimiterConfig struct {
	// Strategy is the rate limiting strategy to use
	Strategy string `json:"strategy" yaml:"strategy" mapstructure:"strategy"`

	// Rate is the number of requests allowed per interval
	Rate int `json:"rate" yaml:"rate" mapstructure:"rate"`

	// Burst is the maximum burst size (token capacity)
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// Interval is the time window for rate limiting
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// TTL is the time-to-live for rate limit keys
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// FailOpen determines behavior when storage is unavailable
	FailOpen bool `json:"fail_open" yaml:"fail_open" mapstructure:"fail_open"`

	// Storage selects the backend: "memory" or "redis"
	Storage string `json:"storage" yaml:"storage" mapstructure:"storage"`

	// KeyPrefix is the prefix for storage keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Validate validates the limiter configuration
func (c *LimiterConfig) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}

	if c.Burst < c.Rate {
		c.Burst = c.Rate // Auto-correct burst to at least rate
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	if c.TTL <= 0 {
		c.TTL = c.Interval * 2 // Default TTL to 2x interval
	}

	strategy := Strategy(c.Strategy)
	switch strategy {
	case StrategyTokenBucket, StrategyLeakyBucket, StrategyFixedWindow, StrategySlidingWindow:
		// Valid strategy
	default:
		return fmt.Errorf("invalid strategy: %s", c.Strategy)
	}

	switch c.Storage {
	case "memory", "redis":
	case "":
		c.Storage = "memory"
	default:
		return fmt.Errorf("invalid storage type: %s", c.Storage)
	}

	if c.KeyPrefix == "" {
		c.KeyPrefix = "crawld:rate"
	}

	return nil
}

// ToConfig converts LimiterConfig to Config
func (c *LimiterConfig) ToConfig() *Config {
	return &Config{
		Strategy: Strategy(c.Strategy),
		Rate:     c.Rate,
		Burst:    c.Burst,
		Interval: c.Interval,
		TTL:      c.TTL,
		FailOpen: c.FailOpen,
	}
}

// DefaultConfig returns a default configuration suited to per-host
// fetch budgets
func DefaultConfig() *LimiterConfig {
	return &LimiterConfig{
		Strategy: string(StrategyTokenBucket),
		Rate:     10,
		Burst:    10,
		Interval: 1 * time.Second,
		TTL:      5 * time.Minute,
		FailOpen: false,
		Storage:  "memory",
	}
}

// Presets for common crawl politeness levels
var (
	// ConfigPolite: 1 request per second per host, no burst. For sites
	// known to throttle aggressively.
	ConfigPolite = &LimiterConfig{
		Strategy: string(StrategySlidingWindow),
		Rate:     1,
		Burst:    1,
		Interval: 1 * time.Second,
		TTL:      2 * time.Minute,
		FailOpen: false,
	}

	// ConfigStandard: 5 requests per second per host with 2x burst
	ConfigStandard = &LimiterConfig{
		Strategy: string(StrategyTokenBucket),
		Rate:     5,
		Burst:    10,
		Interval: 1 * time.Second,
		TTL:      2 * time.Minute,
		FailOpen: false,
	}

	// ConfigBulk: 50 requests per second for bulk API endpoints that
	// publish generous quotas
	ConfigBulk = &LimiterConfig{
		Strategy: string(StrategyTokenBucket),
		Rate:     50,
		Burst:    100,
		Interval: 1 * time.Second,
		TTL:      2 * time.Minute,
		FailOpen: true,
	}
)
