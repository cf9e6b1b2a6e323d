package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/boq-ai/internal/boq/client"
	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/boq/registry"
)

const tick = 5 * time.Millisecond

type step struct {
	report client.StatusReport
	err    error
}

// scriptedSource replays steps in order and repeats the last one.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedSource) Status(_ context.Context, _ string) (client.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	return s.steps[i].report, s.steps[i].err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func report(st domain.Status) step {
	return step{report: client.StatusReport{Status: st}}
}

func finished(items ...domain.LineItem) step {
	return step{report: client.StatusReport{Status: domain.StatusFinished, Result: &domain.Result{Items: items}}}
}

func transportErr() step {
	return step{err: &domain.TransportError{Op: "status", Err: errors.New("connection reset")}}
}

func queuedJob(t *testing.T, reg *registry.Registry, serverID string) string {
	t.Helper()
	key := reg.Create(serverID + ".dwg")
	require.NoError(t, reg.MarkQueued(key, serverID))
	return key
}

func waitTerminal(t *testing.T, reg *registry.Registry, ref string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		job, _ = reg.Get(ref)
		return job.IsDone()
	}, 2*time.Second, tick)
	return job
}

func TestPoller_FollowsJobToFinished(t *testing.T) {
	reg := registry.New(nil)
	key := queuedJob(t, reg, "srv-1")

	var mu sync.Mutex
	var statuses []domain.Status
	reg.Observe(registry.ObserverFunc(func(prev, next domain.Job) {
		mu.Lock()
		defer mu.Unlock()
		if prev.Status != next.Status {
			statuses = append(statuses, next.Status)
		}
	}))

	src := &scriptedSource{steps: []step{
		report(domain.StatusQueued),
		report(domain.StatusStarted),
		report(domain.StatusStarted),
		finished(domain.LineItem{ItemCode: "A001", Description: "Mock Item", Quantity: 1, Unit: "m"}),
	}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick})
	p.Start(context.Background(), "srv-1")

	job := waitTerminal(t, reg, key)
	assert.Equal(t, domain.StatusFinished, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Mock Item", job.Result.Items[0].Description)

	p.Wait()
	assert.Equal(t, 0, p.Active())

	mu.Lock()
	assert.Equal(t, []domain.Status{domain.StatusStarted, domain.StatusFinished}, statuses)
	mu.Unlock()
}

func TestPoller_FinishedBeforeFirstPollPassesThroughStarted(t *testing.T) {
	reg := registry.New(nil)
	key := queuedJob(t, reg, "srv-1")

	var mu sync.Mutex
	path := []domain.Status{domain.StatusQueued}
	var bad []string
	reg.Observe(registry.ObserverFunc(func(prev, next domain.Job) {
		mu.Lock()
		defer mu.Unlock()
		if prev.Status == next.Status {
			return
		}
		if !domain.CanTransition(prev.Status, next.Status) {
			bad = append(bad, string(prev.Status)+"->"+string(next.Status))
		}
		path = append(path, next.Status)
	}))

	src := &scriptedSource{steps: []step{
		finished(domain.LineItem{ItemCode: "A001", Description: "Mock Item", Quantity: 1, Unit: "m"}),
	}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick})
	p.Start(context.Background(), "srv-1")

	job := waitTerminal(t, reg, key)
	p.Wait()
	assert.Equal(t, domain.StatusFinished, job.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, bad)
	assert.Equal(t, []domain.Status{domain.StatusQueued, domain.StatusStarted, domain.StatusFinished}, path)
}

func TestPoller_NoQueriesAfterTerminal(t *testing.T) {
	reg := registry.New(nil)
	queuedJob(t, reg, "srv-1")

	src := &scriptedSource{steps: []step{report(domain.StatusFailed)}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick})
	p.Start(context.Background(), "srv-1")
	p.Wait()

	calls := src.Calls()
	time.Sleep(10 * tick)
	assert.Equal(t, calls, src.Calls())
	assert.Equal(t, 1, calls)

	job, _ := reg.Get("srv-1")
	assert.Equal(t, domain.StatusFailed, job.Status)
}

func TestPoller_SkipsJobAlreadyTerminal(t *testing.T) {
	reg := registry.New(nil)
	queuedJob(t, reg, "srv-1")
	require.NoError(t, reg.Fail("srv-1", errors.New("cancelled")))

	src := &scriptedSource{steps: []step{report(domain.StatusStarted)}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick})
	p.Start(context.Background(), "srv-1")
	p.Wait()

	assert.Equal(t, 0, src.Calls())
}

func TestPoller_FailureModes(t *testing.T) {
	tests := []struct {
		name      string
		steps     []step
		maxErrors int
		wantErr   string
	}{
		{
			name:    "finished without result",
			steps:   []step{{report: client.StatusReport{Status: domain.StatusFinished}}},
			wantErr: "result.items",
		},
		{
			name:    "malformed response",
			steps:   []step{{err: &domain.FormatError{Field: "status"}}},
			wantErr: "status",
		},
		{
			name:    "server reports failure",
			steps:   []step{report(domain.StatusStarted), report(domain.StatusFailed)},
			wantErr: "processing failed",
		},
		{
			name:    "server failure reason is kept",
			steps:   []step{{report: client.StatusReport{Status: domain.StatusFailed, Error: "processing timed out"}}},
			wantErr: "processing timed out",
		},
		{
			name:    "transport error with no budget",
			steps:   []step{transportErr()},
			wantErr: "connection reset",
		},
		{
			name:      "transport errors exhaust budget",
			steps:     []step{transportErr(), transportErr(), transportErr()},
			maxErrors: 2,
			wantErr:   "connection reset",
		},
		{
			name:    "job not found",
			steps:   []step{{err: &domain.ServerError{StatusCode: 404, Message: "Job not found"}}},
			wantErr: "Job not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New(nil)
			key := queuedJob(t, reg, "srv-1")
			src := &scriptedSource{steps: tt.steps}

			p := New(&Config{Registry: reg, Source: src, Interval: tick, MaxErrors: tt.maxErrors})
			p.Start(context.Background(), "srv-1")

			job := waitTerminal(t, reg, key)
			assert.Equal(t, domain.StatusFailed, job.Status)
			assert.Contains(t, job.Error, tt.wantErr)
			assert.Nil(t, job.Result)
		})
	}
}

func TestPoller_RecoversWithinErrorBudget(t *testing.T) {
	reg := registry.New(nil)
	key := queuedJob(t, reg, "srv-1")

	src := &scriptedSource{steps: []step{
		transportErr(),
		transportErr(),
		report(domain.StatusStarted),
		transportErr(),
		finished(),
	}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick, MaxErrors: 2})
	p.Start(context.Background(), "srv-1")

	job := waitTerminal(t, reg, key)
	assert.Equal(t, domain.StatusFinished, job.Status)
	require.NotNil(t, job.Result)
	assert.Empty(t, job.Result.Items)
}

func TestPoller_JobTimeout(t *testing.T) {
	reg := registry.New(nil)
	key := queuedJob(t, reg, "srv-1")

	src := &scriptedSource{steps: []step{report(domain.StatusStarted)}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick, JobTimeout: 10 * tick})
	p.Start(context.Background(), "srv-1")

	job := waitTerminal(t, reg, key)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "terminal status in time")
}

func TestPoller_ShutdownLeavesJobUntouched(t *testing.T) {
	reg := registry.New(nil)
	key := queuedJob(t, reg, "srv-1")

	src := &scriptedSource{steps: []step{report(domain.StatusStarted)}}
	p := New(&Config{Registry: reg, Source: src, Interval: tick})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, "srv-1")
	require.Eventually(t, func() bool { return src.Calls() > 0 }, time.Second, tick)

	cancel()
	p.Wait()

	job, _ := reg.Get(key)
	assert.Equal(t, domain.StatusStarted, job.Status)
	assert.Equal(t, 0, p.Active())
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	reg := registry.New(nil)
	queuedJob(t, reg, "srv-1")

	src := &scriptedSource{steps: []step{report(domain.StatusQueued)}}
	p := New(&Config{Registry: reg, Source: src, Interval: time.Hour})
	p.Start(context.Background(), "srv-1")
	p.Start(context.Background(), "srv-1")
	assert.Equal(t, 1, p.Active())

	p.Stop("srv-1")
	p.Wait()
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 0, src.Calls())
}

func TestPoller_IndependentJobs(t *testing.T) {
	reg := registry.New(nil)
	okKey := queuedJob(t, reg, "srv-ok")
	badKey := queuedJob(t, reg, "srv-bad")

	p := New(&Config{Registry: reg, Source: routedSource{
		"srv-ok":  finished(domain.LineItem{Description: "Wall", Quantity: 2, Unit: "m2"}),
		"srv-bad": report(domain.StatusFailed),
	}, Interval: tick})
	p.Start(context.Background(), "srv-ok")
	p.Start(context.Background(), "srv-bad")

	assert.Equal(t, domain.StatusFinished, waitTerminal(t, reg, okKey).Status)
	assert.Equal(t, domain.StatusFailed, waitTerminal(t, reg, badKey).Status)
}

type routedSource map[string]step

func (r routedSource) Status(_ context.Context, jobID string) (client.StatusReport, error) {
	s := r[jobID]
	return s.report, s.err
}
