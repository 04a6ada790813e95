package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, tick time.Duration) (*DefaultScheduler, *MemoryBackend) {
	t.Helper()

	backend := NewMemoryBackend()
	logger := &NoOpLogger{}
	metrics := &NoOpMetrics{}
	executor := NewDefaultJobExecutor(logger, metrics)
	lock := NewDistributedLock(backend, logger, metrics)

	sched := NewScheduler(backend, executor, lock, logger, metrics, &Config{
		TickInterval:  tick,
		MaxConcurrent: 2,
	})
	return sched, backend
}

func TestRegisterValidatesJob(t *testing.T) {
	sched, _ := newTestScheduler(t, time.Second)

	err := sched.Register(&Job{Name: "", Schedule: NewIntervalSchedule(time.Second)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJobName)

	err = sched.Register(&Job{
		Name:     "no-handler",
		Schedule: NewIntervalSchedule(time.Second),
		Timeout:  time.Second,
	})
	assert.ErrorIs(t, err, ErrInvalidHandler)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	sched, _ := newTestScheduler(t, time.Second)

	job := &Job{
		Name:     "catalog",
		Schedule: NewIntervalSchedule(time.Minute),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			return &RunSummary{}, nil
		},
	}
	require.NoError(t, sched.Register(job))

	err := sched.Register(&Job{
		Name:     "catalog",
		Schedule: NewIntervalSchedule(time.Minute),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			return &RunSummary{}, nil
		},
	})
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestIntervalJobRunsAndRecordsSummary(t *testing.T) {
	sched, backend := newTestScheduler(t, 20*time.Millisecond)

	var runs atomic.Int32
	job := &Job{
		Name:     "listing-refresh",
		Schedule: NewIntervalSchedule(30 * time.Millisecond),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			runs.Add(1)
			return &RunSummary{BatchID: "b-1", Total: 5, Succeeded: 5}, nil
		},
	}
	require.NoError(t, sched.Register(job))

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop(ctx)

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	persisted, err := backend.LoadJob(ctx, "listing-refresh")
	require.NoError(t, err)
	require.NotNil(t, persisted.Metadata.LastBatch)
	assert.Equal(t, "b-1", persisted.Metadata.LastBatch.BatchID)
	assert.Equal(t, 5, persisted.Metadata.LastBatch.Succeeded)
	assert.GreaterOrEqual(t, persisted.Metadata.RunCount, int64(2))
}

func TestFailedRunIncrementsFailCount(t *testing.T) {
	sched, backend := newTestScheduler(t, 20*time.Millisecond)

	var runs atomic.Int32
	job := &Job{
		Name:     "flaky",
		Schedule: NewIntervalSchedule(30 * time.Millisecond),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			runs.Add(1)
			return nil, errors.New("upstream unavailable")
		},
	}
	require.NoError(t, sched.Register(job))

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop(ctx)

	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		persisted, err := backend.LoadJob(ctx, "flaky")
		return err == nil && persisted.Metadata.FailCount >= 1
	}, 2*time.Second, 10*time.Millisecond)

	persisted, err := backend.LoadJob(ctx, "flaky")
	require.NoError(t, err)
	assert.Contains(t, persisted.Metadata.LastError, "upstream unavailable")
}

func TestTriggerRunsImmediately(t *testing.T) {
	sched, _ := newTestScheduler(t, time.Hour)

	ran := make(chan struct{}, 1)
	job := &Job{
		Name:     "on-demand",
		Schedule: NewIntervalSchedule(time.Hour),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			ran <- struct{}{}
			return &RunSummary{}, nil
		},
	}
	require.NoError(t, sched.Register(job))

	require.NoError(t, sched.Trigger("on-demand"))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not run the job")
	}

	assert.ErrorIs(t, sched.Trigger("missing"), ErrJobNotFound)
}

func TestPausedJobDoesNotRun(t *testing.T) {
	sched, _ := newTestScheduler(t, 20*time.Millisecond)

	var runs atomic.Int32
	job := &Job{
		Name:     "paused",
		Schedule: NewIntervalSchedule(30 * time.Millisecond),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			runs.Add(1)
			return &RunSummary{}, nil
		},
	}
	require.NoError(t, sched.Register(job))
	require.NoError(t, sched.Pause("paused"))

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop(ctx)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	assert.ErrorIs(t, sched.Trigger("paused"), ErrJobPaused)
}

func TestLockPreventsConcurrentOccurrences(t *testing.T) {
	backend := NewMemoryBackend()
	logger := &NoOpLogger{}
	metrics := &NoOpMetrics{}
	executor := NewDefaultJobExecutor(logger, metrics)
	lock := NewDistributedLock(backend, logger, metrics)

	job := &Job{
		Name:     "locked",
		Schedule: NewIntervalSchedule(time.Minute),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			time.Sleep(100 * time.Millisecond)
			return &RunSummary{}, nil
		},
	}

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = lock.AcquireAndExecute(context.Background(), job, "instance-a", executor)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err := lock.AcquireAndExecute(context.Background(), job, "instance-b", executor)
	assert.ErrorIs(t, err, ErrLockAcquisitionFailed)
}

func TestExecutorTimesOutStuckHandler(t *testing.T) {
	logger := &NoOpLogger{}
	executor := NewDefaultJobExecutor(logger, &NoOpMetrics{})

	job := &Job{
		Name:     "stuck",
		Schedule: NewIntervalSchedule(time.Minute),
		Timeout:  30 * time.Millisecond,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			time.Sleep(time.Second)
			return &RunSummary{}, nil
		},
	}

	_, err := executor.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestExecutorRecoversPanic(t *testing.T) {
	logger := &NoOpLogger{}
	executor := NewDefaultJobExecutor(logger, &NoOpMetrics{})

	job := &Job{
		Name:     "panicky",
		Schedule: NewIntervalSchedule(time.Minute),
		Timeout:  time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			panic("boom")
		},
	}

	_, err := executor.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestScheduleJSONRoundTrip(t *testing.T) {
	cron, err := NewCronSchedule("*/5 * * * *")
	require.NoError(t, err)

	for _, schedule := range []Schedule{
		cron,
		NewIntervalSchedule(90 * time.Second),
		NewOnceSchedule(time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)),
	} {
		data, err := json.Marshal(schedule)
		require.NoError(t, err)

		restored, err := UnmarshalSchedule(data)
		require.NoError(t, err)
		assert.Equal(t, schedule.Type(), restored.Type())
		assert.Equal(t, schedule.String(), restored.String())
	}
}

func TestJobJSONRoundTripKeepsMetadata(t *testing.T) {
	job := &Job{
		Name:     "catalog",
		Schedule: NewIntervalSchedule(time.Minute),
		Timeout:  5 * time.Second,
		Handler: func(ctx context.Context) (*RunSummary, error) {
			return &RunSummary{}, nil
		},
		Metadata: JobMetadata{
			Status:    JobStatusPending,
			NextRunAt: time.Now().Add(time.Minute).UTC(),
			RunCount:  7,
			LastBatch: &RunSummary{BatchID: "b-9", Total: 3, Succeeded: 2, Failed: 1},
		},
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var restored Job
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, "catalog", restored.Name)
	assert.Equal(t, job.Schedule.String(), restored.Schedule.String())
	assert.Equal(t, int64(7), restored.Metadata.RunCount)
	require.NotNil(t, restored.Metadata.LastBatch)
	assert.Equal(t, "b-9", restored.Metadata.LastBatch.BatchID)
	assert.Nil(t, restored.Handler)
}
