package keys

import "fmt"

// Namespaces/prefixes
const (
	PrefixRate       = "crawld:rate"
	PrefixPool       = "crawld:pool"
	PrefixDedupe     = "crawld:dedupe"
	PrefixLock       = "crawld:lock"
	PrefixMetrics    = "crawld:metrics"
	StreamDeadLetter = "crawld:stream:deadletter"
)

// LockKey returns a distributed lock key for a named resource
// Example: crawld:lock:cron:nightly-catalog
func LockKey(name string) string {
	return fmt.Sprintf("%s:%s", PrefixLock, name)
}

// MetricsDailyKey returns a metrics key for a metric name and YYYYMMDD date
// Example: crawld:metrics:tasks:failed:20260827
func MetricsDailyKey(metric, yyyymmdd string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixMetrics, metric, yyyymmdd)
}

// DeadLetterStream returns the canonical dead-letter stream key
func DeadLetterStream() string {
	return StreamDeadLetter
}
