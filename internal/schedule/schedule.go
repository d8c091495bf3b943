// Package schedule runs backups for the targets that declare a cron
// schedule. Jobs never overlap: one mutex serializes every target and a
// tick arriving while the same target still runs is skipped.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
)

// Job runs one backup of t.
type Job func(ctx context.Context, t *config.Target) error

type Scheduler struct {
	cron   *cron.Cron
	run    Job
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	targets []string
	entries map[cron.EntryID]string
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New registers a job for every target with a schedule. It fails when no
// target declares one.
func New(targets []config.Target, run Job, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		run:     run,
		logger:  slog.Default(),
		ctx:     context.Background(),
		entries: map[cron.EntryID]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	log := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	for i := range targets {
		t := &targets[i]
		if t.Schedule == "" {
			continue
		}
		id, err := s.cron.AddFunc(t.Schedule, func() { s.runTarget(t) })
		if err != nil {
			return nil, errors.Wrapf(err, "target %s: invalid schedule %q", t.Name, t.Schedule)
		}
		s.targets = append(s.targets, t.Name)
		s.entries[id] = t.Name
	}

	if len(s.targets) == 0 {
		return nil, hlberrors.Configf("no target declares a schedule")
	}
	return s, nil
}

// Targets names the scheduled targets in configuration order.
func (s *Scheduler) Targets() []string {
	return s.targets
}

// Next returns the next activation of every scheduled target after now.
func (s *Scheduler) Next(now time.Time) map[string]time.Time {
	next := make(map[string]time.Time, len(s.targets))
	for _, e := range s.cron.Entries() {
		next[s.entries[e.ID]] = e.Schedule.Next(now)
	}
	return next
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	for name, at := range s.Next(time.Now()) {
		s.logger.Info("Target scheduled", "target", name, "next", at.Format(time.RFC3339))
	}

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) runTarget(t *config.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Info("Scheduled backup started", "target", t.Name)
	if err := s.run(s.ctx, t); err != nil {
		s.logger.Error("Scheduled backup failed", "target", t.Name, "error", err)
		return
	}
	s.logger.Info("Scheduled backup finished", "target", t.Name, "duration", time.Since(start).Round(time.Second))
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
