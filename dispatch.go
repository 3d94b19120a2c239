package laztif

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.airbusds-geo.com/log"
)

// A ConvertFunc processes one job end-to-end. Convert of a Converter is the
// production implementation.
type ConvertFunc func(context.Context, Job) Result

// A Report summarizes one dispatch run. Failures keep the per-row error so
// an operator does not have to diff the output tree against the table to
// find them.
type Report struct {
	RunID    string
	Done     int
	Skipped  int
	Failed   int
	Failures []Result
	Elapsed  time.Duration
}

// Run submits one conversion per job to a pool bounded at workers
// goroutines and blocks until all have completed. Jobs are independent: a
// failed or cancelled job never stops its siblings, and no ordering is
// guaranteed between them. Cancelling ctx prevents not-yet-started jobs
// from running; started jobs finish.
func Run(ctx context.Context, jobs []Job, convert ConvertFunc, workers int) Report {
	start := time.Now()
	report := Report{RunID: uuid.New().String()}
	slog := log.Logger(ctx).Sugar()
	slog.Infof("run %s: dispatching %d jobs on %d workers", report.RunID, len(jobs), workers)

	p := pool.NewWithResults[Result]().WithMaxGoroutines(workers)
	for _, job := range jobs {
		job := job
		p.Go(func() Result {
			select {
			case <-ctx.Done():
				return Result{Job: job, Status: StatusFailed, Err: ctx.Err()}
			default:
			}
			return convert(ctx, job)
		})
	}
	for _, res := range p.Wait() {
		switch res.Status {
		case StatusDone:
			report.Done++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
			report.Failures = append(report.Failures, res)
			slog.Errorf("run %s: row %d (%s): %v", report.RunID, res.Job.Row, res.Job.Input, res.Err)
		}
	}
	report.Elapsed = time.Since(start)
	slog.Infof("run %s: %d done, %d skipped, %d failed in %.1fs",
		report.RunID, report.Done, report.Skipped, report.Failed, report.Elapsed.Seconds())
	return report
}
