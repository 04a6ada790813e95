package dispatch

import (
	"fmt"
	"time"

	"crawld/internal/pkg/queue"
)

// Config holds the configuration for the dispatcher
type Config struct {
	// Concurrency is the number of worker goroutines per batch and the
	// bound on simultaneously running tasks
	Concurrency int

	// RatePerSec caps task starts per second across all workers. Zero
	// disables the internal rate limiter.
	RatePerSec float64

	// MaxRetries is the default retry cap for tasks that do not carry
	// their own
	MaxRetries int

	// RetryBaseDelay is the first backoff delay
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff
	RetryMaxDelay time.Duration

	// DefaultTimeout bounds task attempts that do not carry their own
	// timeout. Zero means no timeout.
	DefaultTimeout time.Duration

	// Queue selects the queue discipline for batches
	Queue queue.Kind

	// PollInterval is how long a worker waits on an empty queue before
	// re-checking for batch shutdown
	PollInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Concurrency:    10,
		RatePerSec:     0,
		MaxRetries:     3,
		RetryBaseDelay: 1 * time.Second,
		RetryMaxDelay:  60 * time.Second,
		DefaultTimeout: 0,
		Queue:          queue.KindFIFO,
		PollInterval:   100 * time.Millisecond,
	}
}

// Validate checks the configuration and fills gaps with defaults
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RatePerSec < 0 {
		return fmt.Errorf("rate_per_sec must not be negative, got %f", c.RatePerSec)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 1 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = c.RetryBaseDelay
	}
	switch c.Queue {
	case queue.KindFIFO, queue.KindPriority, queue.KindDelayed:
	case "":
		c.Queue = queue.KindFIFO
	default:
		return fmt.Errorf("invalid queue kind: %s", c.Queue)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	return nil
}
