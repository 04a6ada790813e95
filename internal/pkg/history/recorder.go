// Package history archives completed batches to postgres so past crawl
// runs can be audited and replayed.
package history

import (
	"fmt"
	"time"

	"crawld/internal/pkg/database"
	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/logger"

	"go.uber.org/zap"
)

// Recorder persists batch outcomes. A disabled recorder accepts records
// and drops them, so callers never branch on configuration.
type Recorder struct {
	batches *database.BaseRepository[BatchRun]
	tasks   *database.BaseRepository[TaskRecord]
	enabled bool
	logger  *logger.Logger
}

// NewRecorder creates a recorder over the given database. Passing a nil
// database yields a disabled recorder.
func NewRecorder(db *database.Database, log *logger.Logger, enabled bool) *Recorder {
	r := &Recorder{
		enabled: enabled && db != nil,
		logger:  log,
	}
	if r.enabled {
		r.batches = database.NewBaseRepository[BatchRun](db)
		r.tasks = database.NewBaseRepository[TaskRecord](db)
	}
	return r
}

// Enabled reports whether records are persisted
func (r *Recorder) Enabled() bool {
	return r.enabled
}

// Record archives one batch outcome. The submitted tasks supply
// metadata (target URLs) that the results no longer carry.
func (r *Recorder) Record(batchID, queueKind string, concurrency int, startedAt time.Time, res *dispatch.BatchResult, tasks []*dispatch.Task) error {
	if !r.enabled {
		return nil
	}

	urls := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if t.Metadata != nil {
			urls[t.ID] = t.Metadata["url"]
		}
	}

	run := &BatchRun{
		ID:          batchID,
		QueueKind:   queueKind,
		Concurrency: concurrency,
		Total:       res.Total,
		Succeeded:   res.Succeeded,
		Failed:      res.Failed,
		Cancelled:   res.Cancelled,
		Retried:     res.Retried,
		DurationMs:  res.Duration.Milliseconds(),
		StartedAt:   startedAt,
		FinishedAt:  startedAt.Add(res.Duration),
	}
	if err := r.batches.Insert(run); err != nil {
		return fmt.Errorf("save batch run: %w", err)
	}

	records := make([]*TaskRecord, 0, len(res.Results))
	for _, tr := range res.Results {
		rec := &TaskRecord{
			BatchID:    batchID,
			TaskID:     tr.TaskID,
			Name:       tr.Name,
			URL:        urls[tr.TaskID],
			Status:     string(tr.Status),
			Attempts:   tr.Attempts,
			DurationMs: tr.Duration.Milliseconds(),
			FinishedAt: tr.FinishedAt,
		}
		if tr.Err != nil {
			rec.Error = tr.Err.Error()
		}
		records = append(records, rec)
	}
	if err := r.tasks.InsertBatch(records); err != nil {
		return fmt.Errorf("save task records: %w", err)
	}

	r.logger.Debug("Batch archived",
		zap.String("batch_id", batchID),
		zap.Int("tasks", len(records)),
	)
	return nil
}

// ListBatches returns archived batch runs, newest first
func (r *Recorder) ListBatches(limit, offset int) ([]*BatchRun, error) {
	if !r.enabled {
		return nil, nil
	}
	var runs []*BatchRun
	q := r.batches.GetDB().Model(&BatchRun{}).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list batch runs: %w", err)
	}
	return runs, nil
}

// GetBatch returns one archived batch run by ID
func (r *Recorder) GetBatch(id string) (*BatchRun, error) {
	if !r.enabled {
		return nil, nil
	}
	return r.batches.GetByField("id", id)
}

// TasksForBatch returns the archived task records of a batch
func (r *Recorder) TasksForBatch(batchID string, limit, offset int) ([]*TaskRecord, error) {
	if !r.enabled {
		return nil, nil
	}
	return r.tasks.GetWhere(map[string]interface{}{"batch_id": batchID}, limit, offset)
}

// CountByStatus counts archived task records with the given status
func (r *Recorder) CountByStatus(status dispatch.Status) (int64, error) {
	if !r.enabled {
		return 0, nil
	}
	return r.tasks.Count(map[string]interface{}{"status": string(status)})
}
