package dispatch

import (
	"context"
	"sync"
	"time"

	"crawld/internal/pkg/logger"

	"go.uber.org/zap"
)

// MetricsCollector holds basic metrics for dispatched tasks
type MetricsCollector struct {
	mu            sync.RWMutex
	taskProcessed map[string]map[string]int64 // taskName -> status -> count
	taskDurations map[string][]time.Duration  // taskName -> durations
	taskRetries   map[string]int64            // taskName -> retry count
	logger        *logger.Logger
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(log *logger.Logger) *MetricsCollector {
	return &MetricsCollector{
		taskProcessed: make(map[string]map[string]int64),
		taskDurations: make(map[string][]time.Duration),
		taskRetries:   make(map[string]int64),
		logger:        log,
	}
}

// RecordAttempt records a single task execution attempt
func (mc *MetricsCollector) RecordAttempt(taskName, status string, duration time.Duration, retries int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.taskProcessed[taskName] == nil {
		mc.taskProcessed[taskName] = make(map[string]int64)
	}
	mc.taskProcessed[taskName][status]++

	// Keep the last 1000 durations per task name
	mc.taskDurations[taskName] = append(mc.taskDurations[taskName], duration)
	if len(mc.taskDurations[taskName]) > 1000 {
		mc.taskDurations[taskName] = mc.taskDurations[taskName][1:]
	}

	if retries > 0 {
		mc.taskRetries[taskName]++
	}
}

// Snapshot returns the processed counts per task name and status
func (mc *MetricsCollector) Snapshot() map[string]map[string]int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]map[string]int64, len(mc.taskProcessed))
	for name, statuses := range mc.taskProcessed {
		out[name] = make(map[string]int64, len(statuses))
		for status, count := range statuses {
			out[name][status] = count
		}
	}
	return out
}

// LogMetrics logs current metrics
func (mc *MetricsCollector) LogMetrics() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for taskName, statuses := range mc.taskProcessed {
		for status, count := range statuses {
			mc.logger.Info("Task metrics",
				zap.String("task_name", taskName),
				zap.String("status", status),
				zap.Int64("count", count),
			)
		}
	}
}

// MetricsMiddleware creates a middleware that collects basic metrics
// For production use, consider integrating with Prometheus or other metrics systems
func MetricsMiddleware(collector *MetricsCollector) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			start := time.Now()
			value, err := next.Process(ctx, task)
			duration := time.Since(start)

			status := "success"
			if err != nil {
				status = "error"
			}

			collector.RecordAttempt(task.Name, status, duration, task.Retries)

			return value, err
		})
	}
}
