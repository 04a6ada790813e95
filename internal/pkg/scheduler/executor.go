package scheduler

import (
	"context"
	"fmt"
	"time"
)

// JobExecutor runs a single occurrence of a job with timeout and panic
// recovery. Per-task retries happen inside the batch dispatcher, so the
// executor never retries a failed occurrence.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) (*RunSummary, error)
}

// DefaultJobExecutor is the default implementation of JobExecutor.
type DefaultJobExecutor struct {
	logger  Logger
	metrics MetricsCollector
}

// NewDefaultJobExecutor creates a new default job executor.
func NewDefaultJobExecutor(logger Logger, metrics MetricsCollector) *DefaultJobExecutor {
	return &DefaultJobExecutor{
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs the job handler once, bounded by the job timeout.
func (e *DefaultJobExecutor) Execute(ctx context.Context, job *Job) (*RunSummary, error) {
	startTime := time.Now()

	e.metrics.JobStarted(job.Name)
	defer func() {
		e.metrics.JobCompleted(job.Name, time.Since(startTime))
	}()

	e.logger.Info(ctx, "executing job", map[string]interface{}{
		"job":       job.Name,
		"run_count": job.Metadata.RunCount,
	})

	timeoutCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	type outcome struct {
		summary *RunSummary
		err     error
	}

	// Run the handler in a goroutine so a stuck batch cannot wedge the
	// scheduler past the job timeout.
	resultChan := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("job panicked: %v", r)
				e.logger.Error(ctx, "job panicked", map[string]interface{}{
					"job":   job.Name,
					"panic": r,
				})
				e.metrics.JobPanicked(job.Name, err)
				resultChan <- outcome{err: err}
			}
		}()
		summary, err := job.Handler(timeoutCtx)
		resultChan <- outcome{summary: summary, err: err}
	}()

	select {
	case <-timeoutCtx.Done():
		if timeoutCtx.Err() == context.DeadlineExceeded {
			e.metrics.JobTimedOut(job.Name)
			return nil, fmt.Errorf("job execution timeout after %s", job.Timeout)
		}
		return nil, timeoutCtx.Err()

	case res := <-resultChan:
		if res.err != nil {
			e.logger.Error(ctx, "job execution failed", map[string]interface{}{
				"job":   job.Name,
				"error": res.err.Error(),
			})
			e.metrics.JobFailed(job.Name, res.err)
			return nil, res.err
		}

		fields := map[string]interface{}{
			"job":      job.Name,
			"duration": time.Since(startTime),
		}
		if res.summary != nil {
			fields["batch_id"] = res.summary.BatchID
			fields["total"] = res.summary.Total
			fields["succeeded"] = res.summary.Succeeded
			fields["failed"] = res.summary.Failed
		}
		e.logger.Info(ctx, "job executed successfully", fields)
		return res.summary, nil
	}
}
