// Package dlq publishes terminally failed tasks to a capped redis
// stream so they can be inspected or replayed later.
package dlq

import (
	"context"
	"time"

	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/redis"
	"crawld/internal/pkg/redis/keys"

	redisv9 "github.com/redis/go-redis/v9"

	"go.uber.org/fx"
)

// defaultMaxLen caps the dead-letter stream (approximate trim)
const defaultMaxLen = 10000

type DLQ struct {
	stream *redis.StreamClient
}

func New(rdb *redisv9.Client) *DLQ {
	return &DLQ{stream: redis.NewStreamClient(rdb)}
}

var Module = fx.Module("redis-dlq",
	fx.Provide(New),
)

// Push appends raw values to a dead-letter stream
func (d *DLQ) Push(ctx context.Context, dlqStream string, maxLen int64, values map[string]interface{}) (string, error) {
	return d.stream.XAdd(ctx, redis.XAddArgs{
		Stream: dlqStream,
		MaxLen: maxLen,
		Values: values,
	})
}

// PushResult records a terminally failed task result on the canonical
// dead-letter stream
func (d *DLQ) PushResult(ctx context.Context, batchID string, res *dispatch.Result) (string, error) {
	values := map[string]interface{}{
		"batch_id":    batchID,
		"task_id":     res.TaskID,
		"task_name":   res.Name,
		"status":      string(res.Status),
		"attempts":    res.Attempts,
		"duration_ms": res.Duration.Milliseconds(),
		"finished_at": res.FinishedAt.Format(time.RFC3339Nano),
	}
	if res.Err != nil {
		values["error"] = res.Err.Error()
	}
	return d.Push(ctx, keys.DeadLetterStream(), defaultMaxLen, values)
}

// Entry is one dead-lettered task as stored on the stream.
type Entry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Recent returns the newest count entries on the canonical stream.
func (d *DLQ) Recent(ctx context.Context, count int64) ([]Entry, error) {
	msgs, err := d.stream.XRevRangeN(ctx, keys.DeadLetterStream(), count)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
		entries = append(entries, Entry{ID: m.ID, Fields: fields})
	}
	return entries, nil
}

// Size returns the current length of the canonical stream.
func (d *DLQ) Size(ctx context.Context) (int64, error) {
	return d.stream.XLen(ctx, keys.DeadLetterStream())
}
