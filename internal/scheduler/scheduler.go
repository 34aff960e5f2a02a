package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"FxPipe/internal/usecase"
	applogger "FxPipe/pkg/logger"

	"github.com/go-co-op/gocron"
)

// Scheduler fires each job on its cron expression through the shared
// Runner. Runs of the same job never overlap.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner *usecase.Runner
	logger *applogger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers one cron entry per job name in specs. Names must exist in
// jobs; an empty expression disables that job.
func New(runner *usecase.Runner, jobs *usecase.JobSet, specs map[string]string) (*Scheduler, error) {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	s := &Scheduler{cron: cron, runner: runner, ctx: context.Background()}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		expr := specs[name]
		if expr == "" {
			continue
		}
		job, ok := jobs.Get(name)
		if !ok {
			return nil, fmt.Errorf("schedule %s: unknown job", name)
		}
		if _, err := cron.Cron(expr).Tag(name).Do(s.fire, job); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", name, expr, err)
		}
	}
	return s, nil
}

// SetLogger injects a structured logger.
func (s *Scheduler) SetLogger(l *applogger.Logger) { s.logger = l }

// Start begins firing jobs. Runs in flight are cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.StartAsync()
	s.logger.Info("scheduler started", applogger.Strings("jobs", s.Tags()))
}

// Stop halts the cron loop and cancels running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// Tags lists the scheduled job names.
func (s *Scheduler) Tags() []string {
	var out []string
	for _, j := range s.cron.Jobs() {
		out = append(out, j.Tags()...)
	}
	sort.Strings(out)
	return out
}

func (s *Scheduler) fire(job usecase.Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	res, err := s.runner.Run(ctx, job)
	if err != nil {
		s.logger.Error("scheduled job failed", applogger.String("job", job.Name()), applogger.Error(err))
		return
	}
	if res.Skipped {
		s.logger.Debug("scheduled job skipped", applogger.String("job", job.Name()), applogger.String("reason", res.Reason))
	}
}
