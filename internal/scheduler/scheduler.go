// Package scheduler triggers ingestion cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"newsdigest/internal/ingest"
)

// DefaultSpec runs ingestion every 30 minutes.
const DefaultSpec = "@every 30m"

// Ingester runs one ingestion cycle.
type Ingester interface {
	Ingest(ctx context.Context) (*ingest.Result, error)
}

// Scheduler periodically runs ingestion. Overlapping runs are skipped so a
// day's log has a single writer within the process.
type Scheduler struct {
	job        Ingester
	spec       string
	runOnStart bool
	log        *slog.Logger
}

// New creates a Scheduler. An empty spec uses DefaultSpec.
func New(job Ingester, spec string, runOnStart bool, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{job: job, spec: spec, runOnStart: runOnStart, log: log}
}

// Run starts the schedule, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	id, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", s.spec, err)
	}

	s.log.Info("scheduler started", "schedule", s.spec)
	if s.runOnStart {
		// Same job chain as scheduled runs.
		c.Entry(id).WrappedJob.Run()
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.log.Info("scheduler stopped")
	return nil
}

// RunOnce runs a single ingestion cycle and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.job.Ingest(ctx)
	if err != nil {
		s.log.Error("ingestion failed", "error", err)
		return
	}
	s.log.Debug("ingestion finished",
		"status", res.Status,
		"key", res.Key,
		"new_articles", res.NewArticles,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
