package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	applogger "FxPipe/pkg/logger"
)

// Job is one scheduled unit of pipeline work. Run returns the counters
// accumulated so far even when it also returns an error.
type Job interface {
	Name() string
	Run(ctx context.Context) (models.JobResult, error)
}

// Job names as recorded in job_runs and exposed on the trigger surface.
const (
	JobIngestBars      = "ingest-bars"
	JobIngestHistory   = "ingest-history"
	JobFillMissingBars = "fill-missing-bars"
	JobValidateBars    = "validate-bars"
	JobGenerateSignals = "generate-signals"
	JobNotify          = "notify"
)

// ReasonMinInterval is the skip reason reported when a job is rate limited.
const ReasonMinInterval = "min_interval"

// Runner wraps every job invocation with JobRun bookkeeping.
type Runner struct {
	jobs         drepo.JobStore
	metrics      drepo.Metrics
	logger       *applogger.Logger
	now          func() time.Time
	minIntervals map[string]time.Duration
}

type RunnerOption func(*Runner)

// WithMinInterval skips a job when its previous run started less than d ago.
func WithMinInterval(name string, d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.minIntervals[name] = d
		}
	}
}

func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(jobs drepo.JobStore, metrics drepo.Metrics, opts ...RunnerOption) *Runner {
	r := &Runner{
		jobs:         jobs,
		metrics:      metrics,
		now:          time.Now,
		minIntervals: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) SetLogger(l *applogger.Logger) { r.logger = l }

// Run executes job once. A min-interval skip returns a Skipped result and
// records no JobRun. A failure to open the JobRun is returned before the
// job starts; a failure to close it is only logged.
func (r *Runner) Run(ctx context.Context, job Job) (models.JobResult, error) {
	name := job.Name()
	started := r.now().UTC()

	if skip, err := r.tooSoon(ctx, name, started); err != nil {
		return models.JobResult{}, err
	} else if skip {
		r.metrics.RecordJobRun(name, "skipped", 0)
		r.logger.Info("job skipped", applogger.String("job", name), applogger.String("reason", ReasonMinInterval))
		return models.JobResult{Skipped: true, Reason: ReasonMinInterval}, nil
	}

	id, err := r.jobs.StartJob(ctx, name, started)
	if err != nil {
		r.metrics.RecordJobRun(name, "error", 0)
		return models.JobResult{}, fmt.Errorf("start job %s: %w", name, err)
	}
	r.logger.Info("job started", applogger.String("job", name), applogger.String("run_id", id))

	res, runErr := job.Run(ctx)

	var summary *string
	if runErr != nil {
		msg := runErr.Error()
		summary = &msg
	}
	finished := r.now().UTC()
	// The run must be closed even when the caller's context is already done.
	if err := r.jobs.FinishJob(context.WithoutCancel(ctx), id, finished, res.RowsProcessed, res.CreditsUsed, summary); err != nil {
		r.logger.Error("finish job failed", applogger.String("job", name), applogger.Error(err))
	}

	elapsed := finished.Sub(started)
	r.metrics.RecordJobRows(name, res.RowsProcessed, res.CreditsUsed)
	if runErr != nil {
		r.metrics.RecordJobRun(name, "error", elapsed.Seconds())
		r.logger.Error("job failed",
			applogger.String("job", name),
			applogger.Int("rows", res.RowsProcessed),
			applogger.Int("credits", res.CreditsUsed),
			applogger.Duration("duration_ms", elapsed),
			applogger.Error(runErr),
		)
		return res, runErr
	}
	r.metrics.RecordJobRun(name, "ok", elapsed.Seconds())
	r.logger.Info("job finished",
		applogger.String("job", name),
		applogger.Int("rows", res.RowsProcessed),
		applogger.Int("credits", res.CreditsUsed),
		applogger.Duration("duration_ms", elapsed),
	)
	return res, nil
}

func (r *Runner) tooSoon(ctx context.Context, name string, now time.Time) (bool, error) {
	d, ok := r.minIntervals[name]
	if !ok {
		return false, nil
	}
	last, err := r.jobs.LatestRun(ctx, name)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("latest run %s: %w", name, err)
	}
	return now.Sub(last.StartedAt) < d, nil
}

// JobSet looks jobs up by name.
type JobSet struct {
	byName map[string]Job
}

func NewJobSet(jobs ...Job) *JobSet {
	s := &JobSet{byName: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		s.byName[j.Name()] = j
	}
	return s
}

func (s *JobSet) Get(name string) (Job, bool) {
	j, ok := s.byName[name]
	return j, ok
}

// Names returns the registered job names sorted.
func (s *JobSet) Names() []string {
	out := make([]string, 0, len(s.byName))
	for n := range s.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
