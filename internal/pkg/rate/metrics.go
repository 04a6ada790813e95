package rate

import "time"

// MetricsCollector counts limiter decisions per strategy. Both the
// per-resource crawl limiter and the API limiter report through it.
type MetricsCollector interface {
	// RecordRequest records a rate limit check and its outcome.
	RecordRequest(strategy Strategy, allowed bool)

	// RecordAllowed records an allowed request for key.
	RecordAllowed(strategy Strategy, key string)

	// RecordDenied records a denied request and the suggested backoff.
	RecordDenied(strategy Strategy, key string, retryAfter time.Duration)

	// RecordError records a storage or evaluation error.
	RecordError(strategy Strategy, err error)

	// RecordFailOpen records a request allowed because storage failed.
	RecordFailOpen(strategy Strategy)

	// RecordLatency records how long the check took.
	RecordLatency(strategy Strategy, duration time.Duration)
}

// NoOpMetrics discards all limiter metrics.
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordRequest(strategy Strategy, allowed bool) {}
func (m *NoOpMetrics) RecordAllowed(strategy Strategy, key string)   {}
func (m *NoOpMetrics) RecordDenied(strategy Strategy, key string, retryAfter time.Duration) {
}
func (m *NoOpMetrics) RecordError(strategy Strategy, err error)                {}
func (m *NoOpMetrics) RecordFailOpen(strategy Strategy)                        {}
func (m *NoOpMetrics) RecordLatency(strategy Strategy, duration time.Duration) {}
