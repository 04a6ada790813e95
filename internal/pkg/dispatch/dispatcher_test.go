package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crawld/internal/pkg/errorsx"
	"crawld/internal/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 4
	cfg.MaxRetries = 0
	cfg.RetryBaseDelay = 5 * time.Millisecond
	cfg.RetryMaxDelay = 20 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestRunAllSucceed(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	tasks := make([]*Task, 0, 20)
	for i := 0; i < 20; i++ {
		n := i
		tasks = append(tasks, NewTask(fmt.Sprintf("fetch-%d", n), func(ctx context.Context) (any, error) {
			return n, nil
		}))
	}

	res, err := d.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 20, res.Total)
	assert.Equal(t, 20, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Cancelled)
	assert.True(t, res.Complete())
	assert.Empty(t, res.Errs)

	// Results come back in submission order regardless of completion order
	require.Len(t, res.Results, 20)
	for i, r := range res.Results {
		assert.Equal(t, tasks[i].ID, r.TaskID)
		assert.Equal(t, StatusSuccess, r.Status)
		assert.Equal(t, i, r.Value)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	_, err = d.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestRetryExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3

	d, err := New(cfg)
	require.NoError(t, err)

	var attempts atomic.Int32
	task := NewTask("always-fails", func(ctx context.Context) (any, error) {
		attempts.Add(1)
		return nil, errors.New("fetch refused")
	})

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	// max_retries=3 means 1 initial attempt plus 3 retries
	assert.Equal(t, int32(4), attempts.Load())
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.Retried)
	assert.Equal(t, StatusFailed, res.Results[0].Status)
	assert.Equal(t, 4, res.Results[0].Attempts)
	require.Len(t, res.Errs, 1)
}

func TestRetryExhaustionAcrossBatch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3

	d, err := New(cfg)
	require.NoError(t, err)

	var attempts atomic.Int32
	tasks := make([]*Task, 0, 10)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, NewTask(fmt.Sprintf("fetch-%d", i), func(ctx context.Context) (any, error) {
			attempts.Add(1)
			return nil, errors.New("fetch refused")
		}))
	}

	res, err := d.Run(context.Background(), tasks)
	require.NoError(t, err)

	// 10 tasks, 4 attempts each
	assert.Equal(t, int32(40), attempts.Load())
	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 10, res.Failed)
	assert.Equal(t, 0, res.Succeeded)
	assert.Len(t, res.Errs, 10)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 5

	d, err := New(cfg)
	require.NoError(t, err)

	var attempts atomic.Int32
	task := NewTask("flaky", func(ctx context.Context) (any, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return "body", nil
	})

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Retried)
	assert.Equal(t, "body", res.Results[0].Value)
	assert.Equal(t, 3, res.Results[0].Attempts)
}

func TestPermanentErrorNotRetried(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3

	d, err := New(cfg)
	require.NoError(t, err)

	var attempts atomic.Int32
	task := NewTask("gone", func(ctx context.Context) (any, error) {
		attempts.Add(1)
		return nil, errorsx.WrapPermanent(errors.New("404 not found"))
	})

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Retried)
}

func TestPerTaskMaxRetriesOverride(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 5

	d, err := New(cfg)
	require.NoError(t, err)

	var attempts atomic.Int32
	task := NewTask("capped", func(ctx context.Context) (any, error) {
		attempts.Add(1)
		return nil, errors.New("boom")
	}, WithMaxRetries(1))

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, 1, res.Failed)
}

func TestConcurrencyBound(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 5

	d, err := New(cfg)
	require.NoError(t, err)

	var active, peak atomic.Int32
	tasks := make([]*Task, 0, 30)
	for i := 0; i < 30; i++ {
		tasks = append(tasks, NewTask("probe", func(ctx context.Context) (any, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			return nil, nil
		}))
	}

	res, err := d.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 30, res.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(5))
	assert.Equal(t, 0, d.Active())
}

func TestPriorityOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.Queue = queue.KindPriority

	d, err := New(cfg)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(name string) Fn {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	tasks := []*Task{
		NewTask("low", record("low"), WithPriority(PriorityLow)),
		NewTask("critical", record("critical"), WithPriority(PriorityCritical)),
		NewTask("normal", record("normal"), WithPriority(PriorityNormal)),
	}

	res, err := d.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, []string{"critical", "normal", "low"}, order)
}

func TestTaskTimeout(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	task := NewTask("slow", func(ctx context.Context) (any, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, WithTimeout(30*time.Millisecond))

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	require.Equal(t, 1, res.Failed)
	assert.ErrorIs(t, res.Results[0].Err, ErrTimeout)
}

func TestTimeoutIsRetryable(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2

	d, err := New(cfg)
	require.NoError(t, err)

	var attempts atomic.Int32
	task := NewTask("slow-then-fast", func(ctx context.Context) (any, error) {
		if attempts.Add(1) == 1 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		}
		return "ok", nil
	}, WithTimeout(30*time.Millisecond))

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Retried)
}

func TestPanicRecovered(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	task := NewTask("panics", func(ctx context.Context) (any, error) {
		panic("selector not found")
	})

	res, err := d.Run(context.Background(), task1(task))
	require.NoError(t, err)

	require.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Results[0].Err.Error(), "panic recovered")
}

func TestBatchCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 2

	d, err := New(cfg)
	require.NoError(t, err)

	tasks := make([]*Task, 0, 10)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, NewTask("long", func(ctx context.Context) (any, error) {
			select {
			case <-time.After(100 * time.Millisecond):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res, err := d.Run(ctx, tasks)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Total)
	assert.True(t, res.Complete())
	assert.Greater(t, res.Cancelled, 0)
	// No slot may leak through the cancellation path
	assert.Equal(t, 0, d.Active())
}

func TestCancelWithRetryPending(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	cfg.RetryBaseDelay = 200 * time.Millisecond
	cfg.RetryMaxDelay = 400 * time.Millisecond

	d, err := New(cfg)
	require.NoError(t, err)

	failed := make(chan struct{})
	var once sync.Once
	task := NewTask("fails-once", func(ctx context.Context) (any, error) {
		once.Do(func() { close(failed) })
		return nil, errors.New("fetch refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-failed
		// Let the orchestrator consume the failure and park the retry
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := d.Run(ctx, task1(task))
	require.NoError(t, err)

	require.Equal(t, 1, res.Cancelled)
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, StatusCancelled, task.Status)
	// One attempt started; the retry never did
	assert.Equal(t, 1, res.Results[0].Attempts)

	// The backoff timer was stopped: it must not move the task out of
	// its terminal status after the batch has finished.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, StatusCancelled, task.Status)
}

func TestCancelledBatchKeepsFinishedOutcomes(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 8

	d, err := New(cfg)
	require.NoError(t, err)

	var started sync.WaitGroup
	started.Add(8)
	tasks := make([]*Task, 0, 8)
	for i := 0; i < 8; i++ {
		tasks = append(tasks, NewTask("finishes-on-cancel", func(ctx context.Context) (any, error) {
			started.Done()
			<-ctx.Done()
			return "ok", nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		started.Wait()
		cancel()
	}()

	res, err := d.Run(ctx, tasks)
	require.NoError(t, err)

	// Attempts that finished while the batch was being cancelled keep
	// their real outcome instead of being reported cancelled
	assert.Equal(t, 8, res.Succeeded)
	assert.Equal(t, 0, res.Cancelled)
	assert.True(t, res.Complete())
}

func TestProgressCallback(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	tasks := make([]*Task, 0, 8)
	for i := 0; i < 8; i++ {
		tasks = append(tasks, NewTask("step", func(ctx context.Context) (any, error) {
			return nil, nil
		}))
	}

	var mu sync.Mutex
	var calls [][2]int
	res, err := d.Run(context.Background(), tasks, WithProgress(func(completed, total int) {
		mu.Lock()
		calls = append(calls, [2]int{completed, total})
		mu.Unlock()
	}))
	require.NoError(t, err)
	require.Equal(t, 8, res.Succeeded)

	require.Len(t, calls, 8)
	for i, c := range calls {
		assert.Equal(t, i+1, c[0])
		assert.Equal(t, 8, c[1])
	}
}

func TestRegistryResolvesHandlers(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterFunc("fetch-page", func(ctx context.Context, task *Task) (any, error) {
		return "page:" + task.Metadata["url"], nil
	})
	require.NoError(t, err)

	d, err := New(testConfig(), WithRegistry(reg))
	require.NoError(t, err)

	known := NewTask("fetch-page", nil, WithMetadata("url", "https://example.com"))
	unknown := NewTask("no-such-handler", nil)

	res, err := d.Run(context.Background(), []*Task{known, unknown})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, "page:https://example.com", res.Results[0].Value)

	// Missing handlers are permanent failures, never retried
	assert.Equal(t, StatusFailed, res.Results[1].Status)
	assert.Equal(t, 0, res.Retried)
}

type stubProvider struct {
	mu        sync.Mutex
	succeeded []string
	failed    []string
}

func (p *stubProvider) Get(ctx context.Context) (*Resource, error) {
	return &Resource{ID: "cookie-1", Value: "session=abc"}, nil
}

func (p *stubProvider) MarkSuccess(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.succeeded = append(p.succeeded, id)
	return nil
}

func (p *stubProvider) MarkFailed(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, id)
	return nil
}

func TestResourceProviderReporting(t *testing.T) {
	provider := &stubProvider{}
	d, err := New(testConfig(), WithResourceProvider(provider))
	require.NoError(t, err)

	good := NewTask("good", func(ctx context.Context) (any, error) {
		res, ok := ResourceFromContext(ctx)
		if !ok {
			return nil, errors.New("no resource attached")
		}
		return res.Value, nil
	})
	bad := NewTask("bad", func(ctx context.Context) (any, error) {
		return nil, errorsx.WrapPermanent(errors.New("blocked"))
	})

	res, err := d.Run(context.Background(), []*Task{good, bad})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, "session=abc", res.Results[0].Value)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, []string{"cookie-1"}, provider.succeeded)
	assert.Equal(t, []string{"cookie-1"}, provider.failed)
}

func TestRateLimitedBatchPacing(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive")
	}

	cfg := testConfig()
	cfg.Concurrency = 10
	cfg.RatePerSec = 20

	d, err := New(cfg)
	require.NoError(t, err)

	tasks := make([]*Task, 0, 40)
	for i := 0; i < 40; i++ {
		tasks = append(tasks, NewTask("paced", func(ctx context.Context) (any, error) {
			return nil, nil
		}))
	}

	start := time.Now()
	res, err := d.Run(context.Background(), tasks)
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, 40, res.Succeeded)
	// 40 tasks at 20/s with a burst of 20 needs at least one refill
	assert.GreaterOrEqual(t, elapsed, 800*time.Millisecond)
}

func task1(t *Task) []*Task { return []*Task{t} }
