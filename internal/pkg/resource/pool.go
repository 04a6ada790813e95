// Package resource provides cookie and proxy pools that hand out crawl
// credentials to task attempts and quarantine the ones that keep failing.
package resource

import (
	"errors"
	"time"
)

// ErrDuplicateID is returned when a resource ID is added twice
var ErrDuplicateID = errors.New("resource id already in pool")

// Config holds pool configuration
type Config struct {
	// Kind selects the backend: "memory" or "redis"
	Kind string

	// Quarantine is how long a failed resource is held out of rotation
	Quarantine time.Duration

	// KeyPrefix namespaces redis-backed pool keys
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Kind:       "memory",
		Quarantine: 5 * time.Minute,
		KeyPrefix:  "crawld:pool",
	}
}
