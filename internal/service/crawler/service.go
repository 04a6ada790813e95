package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"crawld/internal/pkg/dedupe"
	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/errorsx"
	"crawld/internal/pkg/history"
	"crawld/internal/pkg/httpclient"
	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/redis/dlq"
	"crawld/internal/pkg/scheduler"
)

// defaultJobTimeout bounds a recurring batch occurrence when the request
// does not set one.
const defaultJobTimeout = 10 * time.Minute

// Service runs crawl batches through the dispatcher and wires the
// surrounding concerns: URL deduplication, batch history, dead-lettering
// of failed tasks, and recurring schedules.
type Service struct {
	dispatcher *dispatch.Dispatcher
	guard      *dedupe.Guard
	recorder   *history.Recorder
	deadLetter *dlq.DLQ
	sched      scheduler.Scheduler
	logger     *logger.Logger
	validate   *validator.Validate

	client *http.Client

	mu           sync.Mutex
	proxyClients map[string]*http.Client
}

// NewService creates the crawler service.
func NewService(
	dispatcher *dispatch.Dispatcher,
	guard *dedupe.Guard,
	recorder *history.Recorder,
	deadLetter *dlq.DLQ,
	sched scheduler.Scheduler,
	log *logger.Logger,
) *Service {
	return &Service{
		dispatcher:   dispatcher,
		guard:        guard,
		recorder:     recorder,
		deadLetter:   deadLetter,
		sched:        sched,
		logger:       log,
		validate:     validator.New(),
		client:       httpclient.New(),
		proxyClients: make(map[string]*http.Client),
	}
}

// SubmitBatch validates the request, runs it through the dispatcher and
// archives the outcome. It blocks until the batch reaches a terminal state
// or ctx is cancelled.
func (s *Service) SubmitBatch(ctx context.Context, req *SubmitBatchRequest) (*BatchResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}

	tasks, urls, err := s.buildTasks(req.Tasks, time.Duration(req.DedupeTTLSec)*time.Second)
	if err != nil {
		return nil, err
	}

	return s.runBatch(ctx, tasks, urls)
}

func (s *Service) runBatch(ctx context.Context, tasks []*dispatch.Task, urls map[string]string) (*BatchResponse, error) {
	batchID := uuid.New().String()
	startedAt := time.Now()
	total := len(tasks)

	s.logger.Info("batch starting",
		zap.String("batch_id", batchID),
		zap.Int("total", total),
	)

	res, err := s.dispatcher.Run(ctx, tasks, dispatch.WithProgress(func(completed, total int) {
		s.logger.Debug("batch progress",
			zap.String("batch_id", batchID),
			zap.Int("completed", completed),
			zap.Int("total", total),
		)
	}))
	if err != nil {
		return nil, err
	}

	s.logger.Info("batch finished",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("cancelled", res.Cancelled),
		zap.Int("retried", res.Retried),
		zap.Duration("duration", res.Duration),
	)

	s.archive(ctx, batchID, startedAt, res, tasks)

	return toBatchResponse(batchID, res, urls), nil
}

// archive records the batch in history and dead-letters failed tasks.
// Both are best effort: an archival failure never fails the batch.
func (s *Service) archive(ctx context.Context, batchID string, startedAt time.Time, res *dispatch.BatchResult, tasks []*dispatch.Task) {
	queueKind := string(s.dispatcher.QueueKind())

	if err := s.recorder.Record(batchID, queueKind, s.dispatcher.Concurrency(), startedAt, res, tasks); err != nil {
		s.logger.Error("failed to record batch history",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
	}

	if s.deadLetter == nil {
		return
	}
	// Marks survive request cancellation so failures are not lost
	pushCtx := context.WithoutCancel(ctx)
	for _, r := range res.Results {
		if r.Status != dispatch.StatusFailed {
			continue
		}
		if _, err := s.deadLetter.PushResult(pushCtx, batchID, r); err != nil {
			s.logger.Error("failed to dead-letter task",
				zap.String("batch_id", batchID),
				zap.String("task_id", r.TaskID),
				zap.Error(err),
			)
		}
	}
}

// buildTasks turns submitted DTOs into fetch tasks. When dedupeTTL is
// positive, each fetch goes through the dedupe guard so a URL fetched
// within the window is served from cache instead of hitting the site.
func (s *Service) buildTasks(dtos []SubmitTaskDTO, dedupeTTL time.Duration) ([]*dispatch.Task, map[string]string, error) {
	tasks := make([]*dispatch.Task, 0, len(dtos))
	urls := make(map[string]string, len(dtos))

	for i, dto := range dtos {
		prio, err := parsePriority(dto.Priority)
		if err != nil {
			return nil, nil, fmt.Errorf("task %d: %w", i, err)
		}

		opts := []dispatch.TaskOption{dispatch.WithPriority(prio)}
		if dto.MaxRetries != nil {
			opts = append(opts, dispatch.WithMaxRetries(*dto.MaxRetries))
		}
		if dto.TimeoutMS > 0 {
			opts = append(opts, dispatch.WithTimeout(time.Duration(dto.TimeoutMS)*time.Millisecond))
		}
		if dto.DelayMS > 0 {
			opts = append(opts, dispatch.WithDelay(time.Duration(dto.DelayMS)*time.Millisecond))
		}
		for k, v := range dto.Metadata {
			opts = append(opts, dispatch.WithMetadata(k, v))
		}

		task := dispatch.NewFetchTask(dto.Name, dto.URL, s.fetchFunc(dedupeTTL), opts...)
		urls[task.ID] = dto.URL
		tasks = append(tasks, task)
	}

	return tasks, urls, nil
}

func (s *Service) fetchFunc(dedupeTTL time.Duration) dispatch.FetchFunc {
	if dedupeTTL <= 0 || s.guard == nil {
		return s.fetch
	}

	return func(ctx context.Context, url string, res *dispatch.Resource, proxy string) (any, error) {
		result, err := s.guard.DoURL(ctx, url, dedupeTTL, func(ctx context.Context) (any, error) {
			return s.fetch(ctx, url, res, proxy)
		})
		switch {
		case errors.Is(err, dedupe.ErrInFlight):
			// Another worker owns this URL right now, back off and retry
			return nil, err
		case errors.Is(err, dedupe.ErrPreviouslyFailed):
			// The window already saw this URL fail, do not hit it again
			return nil, errorsx.WrapPermanent(err)
		default:
			return result, err
		}
	}
}

// RegisterJob registers a recurring batch with the scheduler. Each
// occurrence dispatches a fresh copy of the submitted tasks.
func (s *Service) RegisterJob(req *CreateJobRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	var (
		schedule scheduler.Schedule
		err      error
	)
	switch {
	case req.Cron != "":
		schedule, err = scheduler.NewCronSchedule(req.Cron)
		if err != nil {
			return err
		}
	case req.IntervalSec > 0:
		schedule = scheduler.NewIntervalSchedule(time.Duration(req.IntervalSec) * time.Second)
	default:
		return fmt.Errorf("job needs a cron expression or an interval")
	}

	timeout := defaultJobTimeout
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec) * time.Second
	}

	dtos := req.Tasks
	job := &scheduler.Job{
		Name:     req.Name,
		Schedule: schedule,
		Timeout:  timeout,
		Handler: func(ctx context.Context) (*scheduler.RunSummary, error) {
			tasks, urls, err := s.buildTasks(dtos, 0)
			if err != nil {
				return nil, err
			}
			resp, err := s.runBatchSummary(ctx, tasks, urls)
			return resp, err
		},
	}

	return s.sched.Register(job)
}

func (s *Service) runBatchSummary(ctx context.Context, tasks []*dispatch.Task, urls map[string]string) (*scheduler.RunSummary, error) {
	resp, err := s.runBatch(ctx, tasks, urls)
	if err != nil {
		return nil, err
	}
	return &scheduler.RunSummary{
		BatchID:   resp.BatchID,
		Total:     resp.Total,
		Succeeded: resp.Succeeded,
		Failed:    resp.Failed,
		Cancelled: resp.Cancelled,
		Duration:  time.Duration(resp.DurationMS) * time.Millisecond,
	}, nil
}

// Jobs lists all registered recurring batches.
func (s *Service) Jobs() ([]JobResponse, error) {
	jobs, err := s.sched.GetAllJobs()
	if err != nil {
		return nil, err
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobResponse{
			Name:      j.Name,
			Schedule:  j.Schedule.String(),
			Status:    string(j.Metadata.Status),
			NextRunAt: j.Metadata.NextRunAt,
			LastRunAt: j.Metadata.LastRunAt,
			LastError: j.Metadata.LastError,
			RunCount:  j.Metadata.RunCount,
			FailCount: j.Metadata.FailCount,
		})
	}
	return out, nil
}

// TriggerJob runs a recurring batch now.
func (s *Service) TriggerJob(name string) error { return s.sched.Trigger(name) }

// PauseJob pauses a recurring batch.
func (s *Service) PauseJob(name string) error { return s.sched.Pause(name) }

// ResumeJob resumes a paused recurring batch.
func (s *Service) ResumeJob(name string) error { return s.sched.Resume(name) }

// RemoveJob unregisters a recurring batch.
func (s *Service) RemoveJob(name string) error { return s.sched.Remove(name) }

// ListBatches returns archived batch runs, newest first.
func (s *Service) ListBatches(limit, offset int) ([]*history.BatchRun, error) {
	return s.recorder.ListBatches(limit, offset)
}

// GetBatch returns one archived batch run.
func (s *Service) GetBatch(id string) (*history.BatchRun, error) {
	return s.recorder.GetBatch(id)
}

// BatchTasks returns the archived task records of a batch.
func (s *Service) BatchTasks(batchID string, limit, offset int) ([]*history.TaskRecord, error) {
	return s.recorder.TasksForBatch(batchID, limit, offset)
}

// DeadLetters returns the newest dead-lettered tasks.
func (s *Service) DeadLetters(ctx context.Context, count int64) ([]dlq.Entry, error) {
	if s.deadLetter == nil {
		return nil, fmt.Errorf("dead-letter queue not configured")
	}
	return s.deadLetter.Recent(ctx, count)
}

// DispatcherStatus reports current dispatcher saturation.
func (s *Service) DispatcherStatus() DispatcherStatusResponse {
	return DispatcherStatusResponse{
		Active:      s.dispatcher.Active(),
		Concurrency: s.dispatcher.Concurrency(),
	}
}
