package scheduler

import (
	"context"
	"time"
)

// BackendProvider persists job metadata and arbitrates distributed
// locks. The redis backend shares state across instances; the memory
// backend is single-process and used in tests.
type BackendProvider interface {
	// SaveJob persists a job definition and its metadata.
	SaveJob(ctx context.Context, job *Job) error

	// LoadJobs returns every persisted job.
	LoadJobs(ctx context.Context) ([]*Job, error)

	// LoadJob returns one job by name, or ErrJobNotFound.
	LoadJob(ctx context.Context, jobName string) (*Job, error)

	// UpdateMetadata writes run status, counters and the next run time.
	UpdateMetadata(ctx context.Context, jobName string, metadata *JobMetadata) error

	// DeleteJob removes a job and its metadata.
	DeleteJob(ctx context.Context, jobName string) error

	// AcquireLock claims a lock for one occurrence. A false return with
	// nil error means another instance holds it.
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration, owner string) (bool, error)

	// ReleaseLock drops a lock if owner still holds it.
	ReleaseLock(ctx context.Context, lockKey string, owner string) error

	// RefreshLock extends the TTL while the occurrence is still running.
	RefreshLock(ctx context.Context, lockKey string, ttl time.Duration, owner string) error

	// GetJobsDueForExecution returns jobs whose NextRunAt is at or
	// before now.
	GetJobsDueForExecution(ctx context.Context, now time.Time) ([]*Job, error)

	// Close releases backend resources.
	Close() error
}

// LockInfo describes a held occurrence lock.
type LockInfo struct {
	Key       string
	Owner     string
	ExpiresAt time.Time
}
