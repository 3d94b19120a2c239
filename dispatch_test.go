package laztif

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport(t *testing.T) {
	jobs := make([]Job, 9)
	for i := range jobs {
		jobs[i] = Job{Row: i, Input: fmt.Sprintf("in%d.laz", i)}
	}
	convert := func(_ context.Context, job Job) Result {
		switch job.Row % 3 {
		case 0:
			return Result{Job: job, Status: StatusDone, Points: 100}
		case 1:
			return Result{Job: job, Status: StatusSkipped}
		default:
			return Result{Job: job, Status: StatusFailed, Err: fmt.Errorf("boom %d", job.Row)}
		}
	}

	report := Run(context.Background(), jobs, convert, 4)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Done)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 3, report.Failed)
	require.Len(t, report.Failures, 3)
	for _, f := range report.Failures {
		assert.Equal(t, 2, f.Job.Row%3)
		assert.Error(t, f.Err)
	}
}

func TestRunAllJobsComplete(t *testing.T) {
	jobs := make([]Job, 50)
	for i := range jobs {
		jobs[i] = Job{Row: i}
	}
	var mu sync.Mutex
	seen := map[int]bool{}
	convert := func(_ context.Context, job Job) Result {
		mu.Lock()
		seen[job.Row] = true
		mu.Unlock()
		if job.Row == 7 {
			// one bad row must not stop its siblings
			return Result{Job: job, Status: StatusFailed, Err: fmt.Errorf("corrupt input")}
		}
		return Result{Job: job, Status: StatusDone}
	}

	report := Run(context.Background(), jobs, convert, 8)
	assert.Len(t, seen, 50)
	assert.Equal(t, 49, report.Done)
	assert.Equal(t, 1, report.Failed)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := 0
	convert := func(context.Context, Job) Result {
		called++
		return Result{Status: StatusDone}
	}
	report := Run(ctx, []Job{{Row: 0}, {Row: 1}}, convert, 2)
	assert.Equal(t, 0, called)
	assert.Equal(t, 2, report.Failed)
}

func TestRunEmpty(t *testing.T) {
	report := Run(context.Background(), nil, nil, 4)
	assert.Equal(t, 0, report.Done+report.Skipped+report.Failed)
}
