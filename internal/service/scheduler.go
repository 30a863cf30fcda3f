package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	sotel "github.com/doctorauto/sophia/internal/adapter/otel"
)

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	// Immediate skips the random start delay.
	Immediate bool
	Run       func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals. Each job starts after a random
// delay so that replicas do not hit the store in lockstep. A failed run is
// logged and retried at the next tick.
type Scheduler struct {
	jobs     []Job
	maxDelay time.Duration
	metrics  *sotel.Metrics
	jitter   func(limit time.Duration) time.Duration
}

// NewScheduler creates a Scheduler for jobs.
func NewScheduler(maxInitialDelay time.Duration, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		maxDelay: maxInitialDelay,
		jitter: func(limit time.Duration) time.Duration {
			if limit <= 0 {
				return 0
			}
			return rand.N(limit)
		},
	}
}

// SetMetrics attaches the OpenTelemetry counters.
func (s *Scheduler) SetMetrics(m *sotel.Metrics) { s.metrics = m }

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			slog.Warn("cron job disabled", "job", job.Name)
			continue
		}
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}
	slog.Info("cron started", "jobs", len(s.jobs))
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	if !job.Immediate {
		if !sleep(ctx, s.jitter(s.maxDelay)) {
			return
		}
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		s.runOnce(ctx, job)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	ctx, span := sotel.StartCronSpan(ctx, job.Name)
	start := time.Now()
	err := job.Run(ctx)
	sotel.EndSpan(span, err)
	s.metrics.CronRun(ctx, job.Name, time.Since(start).Seconds(), err)

	if err != nil && ctx.Err() == nil {
		slog.Error("cron job failed", "job", job.Name, "error", err)
		return
	}
	slog.Debug("cron job done", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
