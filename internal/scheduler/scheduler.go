package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one idempotent unit of periodic work. Bodies must tolerate being
// run twice in a row; the scheduler gives no exactly-once guarantee.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives independent timer loops, one goroutine per job, each fired
// once immediately on start.
type Runner struct {
	jobs []Job
}

func New(jobs ...Job) *Runner { return &Runner{jobs: jobs} }

func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		go r.loop(ctx, job)
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	run := func() {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			slog.Error("scheduled job failed", "job", job.Name, "error", err)
			return
		}
		slog.Debug("scheduled job done", "job", job.Name, "took", time.Since(start))
	}

	run()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
