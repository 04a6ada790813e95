package history

import (
	"time"
)

// BatchRun archives the aggregate outcome of one dispatched batch
type BatchRun struct {
	ID          string `gorm:"primaryKey;size:36"`
	QueueKind   string `gorm:"size:16"`
	Concurrency int
	Total       int
	Succeeded   int
	Failed      int
	Cancelled   int
	Retried     int
	DurationMs  int64
	StartedAt   time.Time
	FinishedAt  time.Time
	CreatedAt   time.Time
}

// TableName overrides the gorm table name
func (BatchRun) TableName() string {
	return "batch_runs"
}

// TaskRecord archives one task's terminal result within a batch
type TaskRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	BatchID    string `gorm:"size:36;index"`
	TaskID     string `gorm:"size:36;index"`
	Name       string `gorm:"size:255"`
	URL        string `gorm:"size:2048"`
	Status     string `gorm:"size:16;index"`
	Attempts   int
	DurationMs int64
	Error      string `gorm:"type:text"`
	FinishedAt time.Time
	CreatedAt  time.Time
}

// TableName overrides the gorm table name
func (TaskRecord) TableName() string {
	return "task_records"
}
