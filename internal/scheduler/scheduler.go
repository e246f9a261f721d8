// Package scheduler runs ReplyPipe's periodic maintenance jobs on cron expressions:
// refreshing the team and label caches and pruning old dedup records.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default schedules.
const (
	DefaultCacheRefreshSpec = "*/5 * * * *"
	DefaultDedupPruneSpec   = "@hourly"
)

// Job is a unit of periodic work. It receives a context cancelled on Stop.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with named, context-aware jobs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	jobs   map[string]cron.EntryID
}

// NewScheduler creates a scheduler using the standard 5-field cron syntax plus descriptors
// such as @hourly. Each run is bounded by timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]cron.EntryID),
	}
}

// AddJob registers job under name. Registering a name twice replaces the earlier job.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = id
	slog.Debug("Scheduler.AddJob: job registered", "name", name, "spec", spec)
	return nil
}

// RunNow executes the named job once, synchronously.
func (s *Scheduler) RunNow(name string, job Job) {
	s.run(name, job)
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		slog.Error("Scheduler.run: job failed", "name", name, "error", err)
		return
	}
	slog.Debug("Scheduler.run: job finished", "name", name, "elapsed", time.Since(start))
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	slog.Info("Scheduler.Start: starting scheduler", "jobs", s.Jobs())
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Info("Scheduler.Stop: scheduler stopped")
}
