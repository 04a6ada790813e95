package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawld/internal/pkg/dedupe"
	"crawld/internal/pkg/dispatch"
	"crawld/internal/pkg/history"
	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/scheduler"
)

func newTestService(t *testing.T) (*Service, *httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Write([]byte("ok"))
		}
	}))
	t.Cleanup(srv.Close)

	log := logger.NewNop()

	cfg := dispatch.DefaultConfig()
	cfg.Concurrency = 4
	cfg.MaxRetries = 0
	cfg.RetryBaseDelay = 5 * time.Millisecond
	cfg.RetryMaxDelay = 20 * time.Millisecond
	cfg.DefaultTimeout = 2 * time.Second
	cfg.PollInterval = 10 * time.Millisecond

	dispatcher, err := dispatch.New(cfg, dispatch.WithLogger(log))
	require.NoError(t, err)

	guard := dedupe.NewGuard(dedupe.NewMemoryStore(), dedupe.NewJSONCodec())
	recorder := history.NewRecorder(nil, log, false)

	backend := scheduler.NewMemoryBackend()
	executor := scheduler.NewDefaultJobExecutor(&scheduler.NoOpLogger{}, &scheduler.NoOpMetrics{})
	lock := scheduler.NewDistributedLock(backend, &scheduler.NoOpLogger{}, &scheduler.NoOpMetrics{})
	sched := scheduler.NewScheduler(backend, executor, lock, nil, nil, &scheduler.Config{
		TickInterval:  20 * time.Millisecond,
		MaxConcurrent: 2,
	})

	return NewService(dispatcher, guard, recorder, nil, sched, log), srv, &hits
}

func TestSubmitBatchFetchesAllURLs(t *testing.T) {
	svc, srv, hits := newTestService(t)

	req := &SubmitBatchRequest{
		Tasks: []SubmitTaskDTO{
			{Name: "a", URL: srv.URL + "/a"},
			{Name: "b", URL: srv.URL + "/b"},
			{Name: "c", URL: srv.URL + "/c"},
		},
	}

	resp, err := svc.SubmitBatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 3, resp.Succeeded)
	assert.Equal(t, 0, resp.Failed)
	assert.Equal(t, int32(3), hits.Load())

	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a", resp.Results[0].Name)
	assert.Equal(t, srv.URL+"/a", resp.Results[0].URL)
	assert.Equal(t, string(dispatch.StatusSuccess), resp.Results[0].Status)
}

func TestSubmitBatchRejectsInvalidRequest(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SubmitBatch(context.Background(), &SubmitBatchRequest{})
	require.Error(t, err)

	_, err = svc.SubmitBatch(context.Background(), &SubmitBatchRequest{
		Tasks: []SubmitTaskDTO{{Name: "a", URL: "not a url"}},
	})
	require.Error(t, err)
}

func TestSubmitBatchClientErrorIsPermanent(t *testing.T) {
	svc, srv, hits := newTestService(t)

	req := &SubmitBatchRequest{
		Tasks: []SubmitTaskDTO{
			{Name: "gone", URL: srv.URL + "/gone", MaxRetries: intPtr(3)},
		},
	}

	resp, err := svc.SubmitBatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 0, resp.Retried)
	// A 404 is permanent so only the first attempt hits the site
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, resp.Results[0].Error, "status 404")
}

func TestSubmitBatchServerErrorIsRetried(t *testing.T) {
	svc, srv, hits := newTestService(t)

	req := &SubmitBatchRequest{
		Tasks: []SubmitTaskDTO{
			{Name: "fail", URL: srv.URL + "/fail", MaxRetries: intPtr(2)},
		},
	}

	resp, err := svc.SubmitBatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 2, resp.Retried)
	assert.Equal(t, 3, resp.Results[0].Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestSubmitBatchDeduplicatesURLs(t *testing.T) {
	svc, srv, hits := newTestService(t)

	req := &SubmitBatchRequest{
		DedupeTTLSec: 60,
		Tasks: []SubmitTaskDTO{
			{Name: "first", URL: srv.URL + "/same"},
		},
	}
	_, err := svc.SubmitBatch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	// Second batch within the window serves the cached result
	resp, err := svc.SubmitBatch(context.Background(), &SubmitBatchRequest{
		DedupeTTLSec: 60,
		Tasks: []SubmitTaskDTO{
			{Name: "second", URL: srv.URL + "/same"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, int32(1), hits.Load())
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]dispatch.Priority{
		"":         dispatch.PriorityNormal,
		"normal":   dispatch.PriorityNormal,
		"critical": dispatch.PriorityCritical,
		"high":     dispatch.PriorityHigh,
		"low":      dispatch.PriorityLow,
		"idle":     dispatch.PriorityIdle,
	} {
		got, err := parsePriority(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parsePriority("urgent")
	assert.Error(t, err)
}

func TestRegisterJobValidatesSchedule(t *testing.T) {
	svc, srv, _ := newTestService(t)

	err := svc.RegisterJob(&CreateJobRequest{
		Name:  "bad-cron",
		Cron:  "not a cron",
		Tasks: []SubmitTaskDTO{{Name: "a", URL: srv.URL}},
	})
	require.Error(t, err)

	err = svc.RegisterJob(&CreateJobRequest{
		Name:        "hourly",
		Cron:        "0 * * * *",
		TimeoutSec:  30,
		Tasks:       []SubmitTaskDTO{{Name: "a", URL: srv.URL}},
		IntervalSec: 0,
	})
	require.NoError(t, err)

	jobs, err := svc.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "hourly", jobs[0].Name)
	assert.Equal(t, "cron(0 * * * *)", jobs[0].Schedule)
}

func TestTriggeredJobDispatchesBatch(t *testing.T) {
	svc, srv, hits := newTestService(t)

	err := svc.RegisterJob(&CreateJobRequest{
		Name:        "refresh",
		IntervalSec: 3600,
		TimeoutSec:  30,
		Tasks: []SubmitTaskDTO{
			{Name: "a", URL: srv.URL + "/a"},
			{Name: "b", URL: srv.URL + "/b"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.TriggerJob("refresh"))

	require.Eventually(t, func() bool {
		return hits.Load() == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func intPtr(n int) *int { return &n }
