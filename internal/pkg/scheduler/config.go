package scheduler

import "time"

// SchedulerConfig holds configuration for the recurring batch scheduler.
type SchedulerConfig struct {
	TickInterval  time.Duration `json:"tick_interval" yaml:"tick_interval"`
	MaxConcurrent int           `json:"max_concurrent" yaml:"max_concurrent"`

	// Lock settings, used when more than one instance shares a backend.
	LockTTL             time.Duration `json:"lock_ttl" yaml:"lock_ttl"`
	LockRefreshInterval time.Duration `json:"lock_refresh_interval" yaml:"lock_refresh_interval"`
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		TickInterval:        5 * time.Second,
		MaxConcurrent:       4,
		LockTTL:             30 * time.Second,
		LockRefreshInterval: 10 * time.Second,
	}
}

// Validate validates the scheduler configuration and fills defaults.
func (c *SchedulerConfig) Validate() error {
	if c.TickInterval <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}

	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}

	if c.LockRefreshInterval <= 0 {
		c.LockRefreshInterval = 10 * time.Second
	}

	if c.LockRefreshInterval >= c.LockTTL {
		c.LockRefreshInterval = c.LockTTL / 3
	}

	return nil
}
