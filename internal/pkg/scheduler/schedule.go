package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule defines when a recurring batch should run.
type Schedule interface {
	// NextRun returns the next run time after the given time.
	NextRun(from time.Time) time.Time
	// String returns a human-readable representation of the schedule.
	String() string
	// Type returns the schedule type for serialization.
	Type() string
}

// ScheduleType identifies the type of schedule.
type ScheduleType string

const (
	ScheduleTypeCron     ScheduleType = "cron"
	ScheduleTypeInterval ScheduleType = "interval"
	ScheduleTypeOnce     ScheduleType = "once"
)

// CronSchedule runs on a standard five-field cron expression.
type CronSchedule struct {
	Expression string
	schedule   cron.Schedule
}

// NewCronSchedule creates a new cron schedule from a cron expression.
func NewCronSchedule(expression string) (*CronSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return &CronSchedule{
		Expression: expression,
		schedule:   schedule,
	}, nil
}

func (c *CronSchedule) NextRun(from time.Time) time.Time {
	return c.schedule.Next(from)
}

func (c *CronSchedule) String() string {
	return fmt.Sprintf("cron(%s)", c.Expression)
}

func (c *CronSchedule) Type() string {
	return string(ScheduleTypeCron)
}

func (c *CronSchedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":       c.Type(),
		"expression": c.Expression,
	})
}

// IntervalSchedule runs at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new interval schedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

func (i *IntervalSchedule) NextRun(from time.Time) time.Time {
	return from.Add(i.Interval)
}

func (i *IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", i.Interval)
}

func (i *IntervalSchedule) Type() string {
	return string(ScheduleTypeInterval)
}

func (i *IntervalSchedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":     i.Type(),
		"interval": i.Interval.String(),
	})
}

// OnceSchedule runs a single time at a specific moment.
type OnceSchedule struct {
	RunAt time.Time
	ran   bool
}

// NewOnceSchedule creates a new one-time schedule.
func NewOnceSchedule(runAt time.Time) *OnceSchedule {
	return &OnceSchedule{
		RunAt: runAt,
	}
}

func (o *OnceSchedule) NextRun(from time.Time) time.Time {
	if o.ran || o.RunAt.Before(from) {
		return time.Time{}
	}
	return o.RunAt
}

func (o *OnceSchedule) String() string {
	return fmt.Sprintf("once at %s", o.RunAt.Format(time.RFC3339))
}

func (o *OnceSchedule) Type() string {
	return string(ScheduleTypeOnce)
}

func (o *OnceSchedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":   o.Type(),
		"run_at": o.RunAt.Format(time.RFC3339),
		"ran":    o.ran,
	})
}

// MarkRan marks the once schedule as executed.
func (o *OnceSchedule) MarkRan() {
	o.ran = true
}

// UnmarshalSchedule restores a schedule from its serialized form.
func UnmarshalSchedule(data []byte) (Schedule, error) {
	var raw struct {
		Type       string `json:"type"`
		Expression string `json:"expression"`
		Interval   string `json:"interval"`
		RunAt      string `json:"run_at"`
		Ran        bool   `json:"ran"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	switch ScheduleType(raw.Type) {
	case ScheduleTypeCron:
		return NewCronSchedule(raw.Expression)

	case ScheduleTypeInterval:
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		return NewIntervalSchedule(interval), nil

	case ScheduleTypeOnce:
		runAt, err := time.Parse(time.RFC3339, raw.RunAt)
		if err != nil {
			return nil, fmt.Errorf("invalid run_at: %w", err)
		}
		s := NewOnceSchedule(runAt)
		s.ran = raw.Ran
		return s, nil

	default:
		return nil, fmt.Errorf("unknown schedule type: %q", raw.Type)
	}
}
