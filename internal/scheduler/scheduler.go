// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	applog "trackme/internal/log"
)

// Job is one unit of scheduled work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context) error

type entry struct {
	name string
	spec string
	job  Job
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *applog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a scheduler. Each run gets at most timeout; zero means no
// limit. Overlapping runs of the same job are skipped.
func New(logger *applog.Logger, loc *time.Location, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = applog.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.WithComponent(applog.ComponentScheduler)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]entry),
	}
}

// Add registers job under name using a standard cron spec or a descriptor
// such as "@every 1h".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = entry{name: name, spec: spec, job: job}
	s.logger.Info("Scheduled job", "job", name, "schedule", spec)
	return nil
}

// RunNow runs a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(name, e.job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := job(ctx)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("Job failed", "job", name, applog.FieldDuration, duration.Milliseconds(), applog.FieldError, err)
		return err
	}
	s.logger.Info("Job finished", "job", name, applog.FieldDuration, duration.Milliseconds())
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
