package scheduler

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"FxPipe/internal/domain/models"
	"FxPipe/internal/repository/memory"
	"FxPipe/internal/usecase"
	"FxPipe/pkg/metrics"
)

type countingJob struct {
	name string
	runs atomic.Int32
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) (models.JobResult, error) {
	j.runs.Add(1)
	return models.JobResult{RowsProcessed: 1}, nil
}

func TestNewRegistersConfiguredJobs(t *testing.T) {
	ingest := &countingJob{name: usecase.JobIngestBars}
	notify := &countingJob{name: usecase.JobNotify}
	runner := usecase.NewRunner(memory.New(), metrics.Nop{})

	s, err := New(runner, usecase.NewJobSet(ingest, notify), map[string]string{
		usecase.JobIngestBars: "5 * * * *",
		usecase.JobNotify:     "*/2 * * * *",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := strings.Join(s.Tags(), ","); got != "ingest-bars,notify" {
		t.Fatalf("tags = %s", got)
	}
}

func TestEmptyExpressionDisablesJob(t *testing.T) {
	ingest := &countingJob{name: usecase.JobIngestBars}
	runner := usecase.NewRunner(memory.New(), metrics.Nop{})
	s, err := New(runner, usecase.NewJobSet(ingest), map[string]string{usecase.JobIngestBars: ""})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(s.Tags()) != 0 {
		t.Fatalf("tags = %v", s.Tags())
	}
}

func TestUnknownJobRejected(t *testing.T) {
	runner := usecase.NewRunner(memory.New(), metrics.Nop{})
	_, err := New(runner, usecase.NewJobSet(), map[string]string{"nope": "* * * * *"})
	if err == nil || !strings.Contains(err.Error(), "unknown job") {
		t.Fatalf("want unknown job error, got %v", err)
	}
}

func TestInvalidExpressionRejected(t *testing.T) {
	ingest := &countingJob{name: usecase.JobIngestBars}
	runner := usecase.NewRunner(memory.New(), metrics.Nop{})
	if _, err := New(runner, usecase.NewJobSet(ingest), map[string]string{usecase.JobIngestBars: "not a cron"}); err == nil {
		t.Fatalf("want parse error")
	}
}

func TestFireRunsThroughRunner(t *testing.T) {
	store := memory.New()
	ingest := &countingJob{name: usecase.JobIngestBars}
	runner := usecase.NewRunner(store, metrics.Nop{})
	s, err := New(runner, usecase.NewJobSet(ingest), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.fire(ingest)
	if ingest.runs.Load() != 1 {
		t.Fatalf("runs = %d", ingest.runs.Load())
	}
	if _, err := store.LatestRun(context.Background(), usecase.JobIngestBars); err != nil {
		t.Fatalf("job run not recorded: %v", err)
	}
}
