package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"crawld/internal/pkg/errorsx"
	"crawld/internal/pkg/limit"
	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/queue"
	"crawld/internal/pkg/rate"
	"crawld/internal/pkg/retry"

	"go.uber.org/zap"
)

// ErrEmptyBatch is returned by Run when no tasks are submitted
var ErrEmptyBatch = errors.New("empty batch")

// rateKeyDefault is the limiter key when no per-task key function is set
const rateKeyDefault = "dispatch"

// Dispatcher drives batches of tasks to completion through a bounded
// worker pool, a rate limiter, a retry policy, and a queue.
type Dispatcher struct {
	config      Config
	policy      retry.Policy
	limiter     rate.Limiter
	rateKey     func(*Task) string
	slots       *limit.Limiter
	provider    ResourceProvider
	registry    *Registry
	middlewares []Middleware
	handler     Handler
	logger      *logger.Logger
}

// Option customizes a Dispatcher at construction
type Option func(*Dispatcher)

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(d *Dispatcher) { d.logger = log }
}

// WithRateLimiter replaces the internal rate limiter with a shared one,
// typically redis-backed so multiple processes share one fetch budget
func WithRateLimiter(l rate.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithRateKey derives the rate limiter key from the task, e.g. the
// target host for per-host politeness budgets
func WithRateKey(fn func(*Task) string) Option {
	return func(d *Dispatcher) { d.rateKey = fn }
}

// WithResourceProvider sets the pool that hands resources to attempts
func WithResourceProvider(p ResourceProvider) Option {
	return func(d *Dispatcher) { d.provider = p }
}

// WithRegistry sets the registry used to resolve handlers for tasks
// that carry a name but no operation
func WithRegistry(r *Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// WithMiddleware appends middlewares to the attempt chain
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) { d.middlewares = append(d.middlewares, mw...) }
}

// New creates a Dispatcher
func New(config Config, opts ...Option) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		config:  config,
		policy:  retry.ExponentialBackoff(config.RetryBaseDelay, config.RetryMaxDelay, false, config.MaxRetries),
		rateKey: func(*Task) string { return rateKeyDefault },
		logger:  logger.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.limiter == nil && config.RatePerSec > 0 {
		l, err := newInternalLimiter(config.RatePerSec)
		if err != nil {
			return nil, err
		}
		d.limiter = l
	}

	slots, err := limit.New(config.Concurrency)
	if err != nil {
		return nil, err
	}
	d.slots = slots

	// Recovery sits innermost so a panicking operation inside the
	// timeout goroutine cannot crash the process.
	inner := RecoveryMiddleware(d.logger)(HandlerFunc(d.runOperation))
	inner = TimeoutMiddleware(config.DefaultTimeout, d.logger)(inner)
	d.handler = Chain(d.middlewares...)(inner)

	return d, nil
}

// newInternalLimiter builds an in-process token bucket for a fractional
// ops-per-second budget
func newInternalLimiter(ratePerSec float64) (rate.Limiter, error) {
	r := int(math.Ceil(ratePerSec))
	interval := time.Duration(float64(r) / ratePerSec * float64(time.Second))
	cfg := &rate.Config{
		Strategy: rate.StrategyTokenBucket,
		Rate:     r,
		Burst:    r,
		Interval: interval,
		TTL:      10 * interval,
	}
	return rate.New(cfg, rate.NewMemoryStorage())
}

// Active returns the number of tasks currently holding a concurrency slot
func (d *Dispatcher) Active() int {
	return d.slots.Active()
}

// Concurrency returns the configured concurrency bound
func (d *Dispatcher) Concurrency() int {
	return d.config.Concurrency
}

// QueueKind returns the configured queue discipline
func (d *Dispatcher) QueueKind() queue.Kind {
	return d.config.Queue
}

// RunOption customizes a single Run call
type RunOption func(*runOptions)

type runOptions struct {
	progress Progress
}

// WithProgress registers a callback invoked after every terminal task
// completion with (completed, total)
func WithProgress(fn Progress) RunOption {
	return func(o *runOptions) { o.progress = fn }
}

// outcome carries one attempt's result from a worker to the orchestrator
type outcome struct {
	task   *Task
	result *Result
}

// retryTimers tracks the backoff timers of attempts awaiting requeue so
// a cancelled batch can stop them before finalizing tasks.
type retryTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newRetryTimers() *retryTimers {
	return &retryTimers{timers: make(map[string]*time.Timer)}
}

func (r *retryTimers) track(taskID string, t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[taskID] = t
}

func (r *retryTimers) remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, taskID)
}

// stopAll cancels every pending timer. Timers that already fired are
// harmless: their enqueue hits a closed queue.
func (r *retryTimers) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// Run drives the batch to completion and returns the aggregate result.
// Individual task failures never propagate as errors; Run itself fails
// only on invalid input. On context cancellation the batch stops and
// every unfinished task is reported cancelled.
func (d *Dispatcher) Run(ctx context.Context, tasks []*Task, opts ...RunOption) (*BatchResult, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyBatch
	}
	for i, t := range tasks {
		if t == nil {
			return nil, fmt.Errorf("task %d is nil", i)
		}
	}

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	start := time.Now()
	total := len(tasks)

	q, err := queue.New[*Task](d.config.Queue)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	for _, t := range tasks {
		t.Status = StatusQueued
		// Put never blocks, so enqueue cannot fail on a fresh queue
		_ = q.Put(t, queue.WithPriority(int(t.Priority)), queue.WithDelay(t.Delay))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to the batch size: at most one unconsumed outcome can
	// exist per task, so workers never block on send.
	outcomes := make(chan outcome, total)

	var wg sync.WaitGroup
	for i := 0; i < d.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workLoop(runCtx, q, outcomes)
		}()
	}

	d.logger.Info("Batch started",
		zap.Int("total", total),
		zap.Int("concurrency", d.config.Concurrency),
		zap.String("queue", string(d.config.Queue)),
	)

	results := make(map[string]*Result, total)
	pending := newRetryTimers()
	completed := 0
	retried := 0
	interrupted := false

	for completed < total && !interrupted {
		select {
		case out := <-outcomes:
			if d.retryDecision(out) {
				retried++
				d.requeue(q, pending, out.task)
				continue
			}
			d.finalize(out.task, out.result)
			results[out.task.ID] = out.result
			completed++
			if ro.progress != nil {
				ro.progress(completed, total)
			}
		case <-runCtx.Done():
			interrupted = true
		}
	}

	// Stop workers. Closing the queue unblocks Get for workers idling
	// on an empty queue.
	cancel()
	q.Close()
	wg.Wait()

	if interrupted {
		// Stop pending backoff timers so no task is re-enqueued or
		// touched after its cancellation is finalized below.
		pending.stopAll()

		// Workers may have finished attempts before observing the
		// cancellation. Those outcomes are terminal now: a retryable
		// failure on a cancelled batch stays failed.
	drain:
		for {
			select {
			case out := <-outcomes:
				d.finalize(out.task, out.result)
				results[out.task.ID] = out.result
				completed++
				if ro.progress != nil {
					ro.progress(completed, total)
				}
			default:
				break drain
			}
		}

		for _, t := range tasks {
			if _, ok := results[t.ID]; ok {
				continue
			}
			res := d.cancelledResult(t, ctx.Err())
			d.finalize(t, res)
			results[t.ID] = res
			completed++
			if ro.progress != nil {
				ro.progress(completed, total)
			}
		}
	}

	batch := &BatchResult{
		Total:    total,
		Retried:  retried,
		Duration: time.Since(start),
		Results:  make([]*Result, 0, total),
	}
	for _, t := range tasks {
		res := results[t.ID]
		batch.Results = append(batch.Results, res)
		switch res.Status {
		case StatusSuccess:
			batch.Succeeded++
		case StatusFailed:
			batch.Failed++
			batch.Errs = append(batch.Errs, res.Err)
		case StatusCancelled:
			batch.Cancelled++
			if res.Err != nil {
				batch.Errs = append(batch.Errs, res.Err)
			}
		}
	}

	d.logger.Info("Batch finished",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
		zap.Int("cancelled", batch.Cancelled),
		zap.Int("retried", batch.Retried),
		zap.Duration("duration", batch.Duration),
	)

	return batch, nil
}

// retryDecision reports whether the outcome should be retried instead
// of recorded as terminal. Only the orchestrator calls it; workers never
// decide retries.
func (d *Dispatcher) retryDecision(out outcome) bool {
	if out.result.Status != StatusFailed {
		return false
	}
	if errorsx.IsPermanent(out.result.Err) {
		return false
	}
	return d.shouldRetry(out.task)
}

// shouldRetry consults the policy against the task's effective retry cap
func (d *Dispatcher) shouldRetry(t *Task) bool {
	max := t.maxRetries(d.config.MaxRetries)
	if max <= 0 {
		return false
	}
	p := d.policy
	p.MaxAttempts = max
	return p.ShouldRetry(t.Retries)
}

// requeue schedules the task's next attempt after its backoff delay.
// The task stays StatusRetry until a worker picks it up again: the
// timer callback only enqueues, so task fields are written solely by
// the orchestrator and the worker holding the task.
func (d *Dispatcher) requeue(q queue.Queue[*Task], pending *retryTimers, t *Task) {
	backoff := d.policy.Delay(t.Retries)
	t.Retries++
	t.Delay = backoff
	t.Status = StatusRetry

	d.logger.Debug("Task retry scheduled",
		zap.String("task_id", t.ID),
		zap.String("task_name", t.Name),
		zap.Int("retries", t.Retries),
		zap.Duration("backoff", backoff),
	)

	// Put on a closed queue returns ErrClosed; a cancelled batch
	// reports the task cancelled, so the lost enqueue is fine.
	timer := time.AfterFunc(backoff, func() {
		pending.remove(t.ID)
		_ = q.Put(t, queue.WithPriority(int(t.Priority)))
	})
	pending.track(t.ID, timer)
}

// finalize stamps the task with its terminal status
func (d *Dispatcher) finalize(t *Task, res *Result) {
	t.Status = res.Status
	t.FinishedAt = res.FinishedAt
}

// workLoop pops and executes tasks until the batch context ends. The
// poll interval bounds how long a worker sits in Get before re-checking
// for shutdown.
func (d *Dispatcher) workLoop(ctx context.Context, q queue.Queue[*Task], outcomes chan<- outcome) {
	for {
		if ctx.Err() != nil {
			return
		}

		getCtx, cancel := context.WithTimeout(ctx, d.config.PollInterval)
		t, err := q.Get(getCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			// queue closed or batch cancelled
			return
		}

		res := d.executeTask(ctx, t)

		// The channel is buffered to the batch size, so the send never
		// blocks. Sending unconditionally keeps a finished attempt's
		// real outcome even when the batch was cancelled meanwhile.
		outcomes <- outcome{task: t, result: res}
	}
}

// executeTask runs one attempt: rate token, concurrency slot, resource,
// then the handler chain. It never returns a nil result.
func (d *Dispatcher) executeTask(ctx context.Context, t *Task) *Result {
	if d.limiter != nil {
		if err := d.limiter.Acquire(ctx, d.rateKey(t)); err != nil {
			return d.cancelledResult(t, err)
		}
	}

	if err := d.slots.Acquire(ctx); err != nil {
		return d.cancelledResult(t, err)
	}
	defer d.slots.Release()

	t.Status = StatusRunning
	t.StartedAt = time.Now()

	attemptCtx := ctx
	var res *Resource
	if d.provider != nil {
		r, err := d.provider.Get(ctx)
		if err != nil {
			d.logger.Warn("Resource acquisition failed",
				zap.String("task_id", t.ID),
				zap.Error(err),
			)
		} else if r != nil {
			res = r
			attemptCtx = withResource(ctx, r)
		}
	}

	value, err := d.handler.Process(attemptCtx, t)
	duration := time.Since(t.StartedAt)

	result := d.classify(ctx, t, value, err, duration)

	if res != nil {
		switch result.Status {
		case StatusSuccess:
			_ = d.provider.MarkSuccess(context.WithoutCancel(ctx), res.ID)
		case StatusFailed:
			_ = d.provider.MarkFailed(context.WithoutCancel(ctx), res.ID)
		}
	}

	return result
}

// runOperation is the innermost handler: it resolves and invokes the
// task's operation
func (d *Dispatcher) runOperation(ctx context.Context, t *Task) (any, error) {
	if t.Fn != nil {
		return t.Fn(ctx)
	}
	if d.registry != nil {
		if h, ok := d.registry.Resolve(t.Name); ok {
			return h.Process(ctx, t)
		}
	}
	return nil, errorsx.WrapPermanent(fmt.Errorf("no handler registered for task %q", t.Name))
}

// classify maps an attempt outcome onto the error taxonomy: success,
// timeout, operation error, or cancellation
func (d *Dispatcher) classify(ctx context.Context, t *Task, value any, err error, duration time.Duration) *Result {
	res := &Result{
		TaskID:     t.ID,
		Name:       t.Name,
		Attempts:   t.Retries + 1,
		Duration:   duration,
		FinishedAt: time.Now(),
	}

	switch {
	case err == nil:
		res.Status = StatusSuccess
		res.Value = value
	case ctx.Err() != nil:
		// Batch cancellation, not a per-task timeout. Terminal, never
		// retried.
		res.Status = StatusCancelled
		res.Err = err
	case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		res.Status = StatusFailed
		res.Err = fmt.Errorf("%w: attempt exceeded %s", ErrTimeout, t.timeout(d.config.DefaultTimeout))
	default:
		res.Status = StatusFailed
		res.Err = err
	}

	return res
}

// cancelledResult builds a terminal cancelled result for a task whose
// next attempt never started. Attempts therefore counts only prior
// attempts, while classify counts the attempt it is grading.
func (d *Dispatcher) cancelledResult(t *Task, err error) *Result {
	if err == nil {
		err = context.Canceled
	}
	return &Result{
		TaskID:     t.ID,
		Name:       t.Name,
		Status:     StatusCancelled,
		Err:        err,
		Attempts:   t.Retries,
		FinishedAt: time.Now(),
	}
}
