package scheduler

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultLockTTL is the default TTL for distributed locks.
	DefaultLockTTL = 30 * time.Second

	// DefaultLockRefreshInterval is how often to refresh locks.
	DefaultLockRefreshInterval = 10 * time.Second
)

// DistributedLock guards job execution so an occurrence runs on exactly one
// instance at a time.
type DistributedLock struct {
	backend         BackendProvider
	logger          Logger
	metrics         MetricsCollector
	lockTTL         time.Duration
	refreshInterval time.Duration
}

// NewDistributedLock creates a new distributed lock manager.
func NewDistributedLock(
	backend BackendProvider,
	logger Logger,
	metrics MetricsCollector,
) *DistributedLock {
	return &DistributedLock{
		backend:         backend,
		logger:          logger,
		metrics:         metrics,
		lockTTL:         DefaultLockTTL,
		refreshInterval: DefaultLockRefreshInterval,
	}
}

// WithLockTTL sets the lock TTL.
func (d *DistributedLock) WithLockTTL(ttl time.Duration) *DistributedLock {
	d.lockTTL = ttl
	return d
}

// WithRefreshInterval sets the lock refresh interval.
func (d *DistributedLock) WithRefreshInterval(interval time.Duration) *DistributedLock {
	d.refreshInterval = interval
	return d
}

// AcquireAndExecute acquires the job lock and runs the occurrence, refreshing
// the lock for as long as the batch is in flight.
func (d *DistributedLock) AcquireAndExecute(
	ctx context.Context,
	job *Job,
	owner string,
	executor JobExecutor,
) (*RunSummary, error) {
	lockKey := "job:" + job.Name

	acquired, err := d.backend.AcquireLock(ctx, lockKey, d.lockTTL, owner)
	if err != nil {
		d.metrics.LockFailed(job.Name)
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		d.logger.Debug(ctx, "failed to acquire lock (already held)", map[string]interface{}{
			"job": job.Name,
		})
		return nil, ErrLockAcquisitionFailed
	}

	d.logger.Debug(ctx, "lock acquired", map[string]interface{}{
		"job": job.Name,
	})
	d.metrics.LockAcquired(job.Name)

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := d.backend.ReleaseLock(releaseCtx, lockKey, owner); err != nil {
			d.logger.Error(ctx, "failed to release lock", map[string]interface{}{
				"job":   job.Name,
				"error": err.Error(),
			})
		} else {
			d.logger.Debug(ctx, "lock released", map[string]interface{}{
				"job": job.Name,
			})
			d.metrics.LockReleased(job.Name)
		}
	}()

	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()

	refreshDone := make(chan struct{})
	go d.refreshLockPeriodically(refreshCtx, lockKey, owner, job.Name, refreshDone)
	defer func() { <-refreshDone }()

	return executor.Execute(ctx, job)
}

func (d *DistributedLock) refreshLockPeriodically(
	ctx context.Context,
	lockKey string,
	owner string,
	jobName string,
	done chan<- struct{},
) {
	defer close(done)

	ticker := time.NewTicker(d.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.backend.RefreshLock(ctx, lockKey, d.lockTTL, owner); err != nil {
				d.logger.Warn(ctx, "failed to refresh lock", map[string]interface{}{
					"job":   jobName,
					"error": err.Error(),
				})
				return
			}
			d.metrics.LockRefreshed(jobName)
		}
	}
}
