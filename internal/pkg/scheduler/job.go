package scheduler

import (
	"context"
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a recurring batch job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobHandler runs one occurrence of a recurring batch and reports what it
// dispatched. Task-level retries belong to the dispatcher, so the handler is
// attempted exactly once per occurrence. It should be idempotent to handle
// at-least-once delivery semantics.
type JobHandler func(ctx context.Context) (*RunSummary, error)

// RunSummary describes the outcome of one occurrence of a job.
type RunSummary struct {
	BatchID   string        `json:"batch_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// Job defines a recurring batch with its schedule and handler.
type Job struct {
	Name     string        `json:"name"`
	Schedule Schedule      `json:"schedule"`
	Timeout  time.Duration `json:"timeout"`
	Handler  JobHandler    `json:"-"`
	Metadata JobMetadata   `json:"metadata"`
}

// JobMetadata contains runtime information about a job.
type JobMetadata struct {
	Status      JobStatus   `json:"status"`
	NextRunAt   time.Time   `json:"next_run_at"`
	LastRunAt   *time.Time  `json:"last_run_at,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
	LastBatch   *RunSummary `json:"last_batch,omitempty"`
	RunCount    int64       `json:"run_count"`
	FailCount   int64       `json:"fail_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	LockedBy    string      `json:"locked_by,omitempty"`
	LockedUntil *time.Time  `json:"locked_until,omitempty"`
}

// Validate checks if the job configuration is valid.
func (j *Job) Validate() error {
	if j.Name == "" {
		return ErrInvalidJobName
	}

	if j.Schedule == nil {
		return ErrInvalidSchedule
	}

	if j.Handler == nil {
		return ErrInvalidHandler
	}

	if j.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	return nil
}

// UnmarshalJSON restores a persisted job. The handler is not serialized and
// must be reattached by registering the job again on startup.
func (j *Job) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string          `json:"name"`
		Schedule json.RawMessage `json:"schedule"`
		Timeout  time.Duration   `json:"timeout"`
		Metadata JobMetadata     `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	schedule, err := UnmarshalSchedule(raw.Schedule)
	if err != nil {
		return err
	}

	j.Name = raw.Name
	j.Schedule = schedule
	j.Timeout = raw.Timeout
	j.Metadata = raw.Metadata
	return nil
}
