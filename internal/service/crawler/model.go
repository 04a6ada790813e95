package crawler

import (
	"fmt"
	"time"

	"crawld/internal/pkg/dispatch"
)

// SubmitTaskDTO describes one fetch task in a batch submission.
type SubmitTaskDTO struct {
	Name       string            `json:"name" validate:"required"`
	URL        string            `json:"url" validate:"required,url"`
	Priority   string            `json:"priority" validate:"omitempty,oneof=critical high normal low idle"`
	MaxRetries *int              `json:"max_retries" validate:"omitempty,gte=0"`
	TimeoutMS  int64             `json:"timeout_ms" validate:"gte=0"`
	DelayMS    int64             `json:"delay_ms" validate:"gte=0"`
	Metadata   map[string]string `json:"metadata"`
}

// SubmitBatchRequest is the payload for POST /batches.
type SubmitBatchRequest struct {
	Tasks []SubmitTaskDTO `json:"tasks" validate:"required,min=1,dive"`

	// DedupeTTLSec skips URLs fetched within the window. Zero disables
	// deduplication for this batch.
	DedupeTTLSec int `json:"dedupe_ttl_sec" validate:"gte=0"`
}

// CreateJobRequest registers a recurring batch with the scheduler.
type CreateJobRequest struct {
	Name string `json:"name" validate:"required"`

	// Exactly one of Cron or IntervalSec selects the schedule.
	Cron        string `json:"cron" validate:"required_without=IntervalSec"`
	IntervalSec int    `json:"interval_sec" validate:"gte=0"`

	TimeoutSec int             `json:"timeout_sec" validate:"gte=0"`
	Tasks      []SubmitTaskDTO `json:"tasks" validate:"required,min=1,dive"`
}

// TaskResultResponse is the per-task slice of a batch response.
type TaskResultResponse struct {
	TaskID     string `json:"task_id"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
}

// BatchResponse summarizes a completed batch run.
type BatchResponse struct {
	BatchID    string               `json:"batch_id"`
	Total      int                  `json:"total"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Cancelled  int                  `json:"cancelled"`
	Retried    int                  `json:"retried"`
	DurationMS int64                `json:"duration_ms"`
	Results    []TaskResultResponse `json:"results"`
}

// JobResponse describes a registered recurring batch.
type JobResponse struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Status    string     `json:"status"`
	NextRunAt time.Time  `json:"next_run_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int64      `json:"run_count"`
	FailCount int64      `json:"fail_count"`
}

// DispatcherStatusResponse reports dispatcher saturation.
type DispatcherStatusResponse struct {
	Active      int `json:"active"`
	Concurrency int `json:"concurrency"`
}

func parsePriority(s string) (dispatch.Priority, error) {
	switch s {
	case "", "normal":
		return dispatch.PriorityNormal, nil
	case "critical":
		return dispatch.PriorityCritical, nil
	case "high":
		return dispatch.PriorityHigh, nil
	case "low":
		return dispatch.PriorityLow, nil
	case "idle":
		return dispatch.PriorityIdle, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

func toBatchResponse(batchID string, res *dispatch.BatchResult, urls map[string]string) *BatchResponse {
	out := &BatchResponse{
		BatchID:    batchID,
		Total:      res.Total,
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
		Cancelled:  res.Cancelled,
		Retried:    res.Retried,
		DurationMS: res.Duration.Milliseconds(),
		Results:    make([]TaskResultResponse, 0, len(res.Results)),
	}
	for _, r := range res.Results {
		tr := TaskResultResponse{
			TaskID:     r.TaskID,
			Name:       r.Name,
			URL:        urls[r.TaskID],
			Status:     string(r.Status),
			Attempts:   r.Attempts,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			tr.Error = r.Err.Error()
		}
		out.Results = append(out.Results, tr)
	}
	return out
}
