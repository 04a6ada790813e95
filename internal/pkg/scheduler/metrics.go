package scheduler

import "time"

// MetricsCollector receives counters from the scheduler, the executor
// and the lock manager. Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// Occurrence outcomes
	JobStarted(jobName string)
	JobCompleted(jobName string, duration time.Duration)
	JobFailed(jobName string, err error)
	JobTimedOut(jobName string)
	JobPanicked(jobName string, err error)

	// Distributed lock lifecycle
	LockAcquired(jobName string)
	LockReleased(jobName string)
	LockFailed(jobName string)
	LockRefreshed(jobName string)

	// Registry and tick state
	JobsRegistered(count int)
	JobsQueued(count int)
}

// NoOpMetrics discards all metrics. Used when no collector is wired in.
type NoOpMetrics struct{}

func (n *NoOpMetrics) JobStarted(jobName string)                           {}
func (n *NoOpMetrics) JobCompleted(jobName string, duration time.Duration) {}
func (n *NoOpMetrics) JobFailed(jobName string, err error)                 {}
func (n *NoOpMetrics) JobTimedOut(jobName string)                          {}
func (n *NoOpMetrics) JobPanicked(jobName string, err error)               {}
func (n *NoOpMetrics) LockAcquired(jobName string)                         {}
func (n *NoOpMetrics) LockReleased(jobName string)                         {}
func (n *NoOpMetrics) LockFailed(jobName string)                           {}
func (n *NoOpMetrics) LockRefreshed(jobName string)                        {}
func (n *NoOpMetrics) JobsRegistered(count int)                            {}
func (n *NoOpMetrics) JobsQueued(count int)                                {}
