package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FxPipe/internal/repository/memory"
	"FxPipe/pkg/metrics"
)

func TestRunnerRecordsJobRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := NewRunner(store, metrics.Nop{})
	job := &fakeJob{name: "validate-bars"}
	job.res.RowsProcessed, job.res.CreditsUsed = 3, 2

	res, err := r.Run(ctx, job)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 3 {
		t.Fatalf("rows = %d", res.RowsProcessed)
	}
	runs, _ := store.RecentRuns(ctx, "validate-bars", 10)
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.FinishedAt == nil || run.RowsProcessed != 3 || run.CreditsUsed != 2 || run.ErrorSummary != nil {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestRunnerRecordsErrorSummaryWithPartialCounters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := NewRunner(store, metrics.Nop{})
	job := &fakeJob{name: "ingest-bars", err: errors.New("Missing TWELVE_DATA_API_KEY")}
	job.res.RowsProcessed = 4

	if _, err := r.Run(ctx, job); err == nil {
		t.Fatalf("expected error")
	}
	runs, _ := store.RecentRuns(ctx, "ingest-bars", 1)
	if len(runs) != 1 || runs[0].ErrorSummary == nil || *runs[0].ErrorSummary != "Missing TWELVE_DATA_API_KEY" {
		t.Fatalf("unexpected run %+v", runs)
	}
	if runs[0].RowsProcessed != 4 {
		t.Fatalf("rows = %d, want 4", runs[0].RowsProcessed)
	}
}

func TestRunnerMinIntervalSkips(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := base
	r := NewRunner(store, metrics.Nop{},
		WithMinInterval("validate-bars", time.Minute),
		WithRunnerClock(func() time.Time { return now }),
	)
	job := &fakeJob{name: "validate-bars"}

	if res, err := r.Run(ctx, job); err != nil || res.Skipped {
		t.Fatalf("first run: %+v %v", res, err)
	}

	now = base.Add(30 * time.Second)
	res, err := r.Run(ctx, job)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.Skipped || res.Reason != ReasonMinInterval {
		t.Fatalf("expected skip, got %+v", res)
	}
	if job.calls != 1 {
		t.Fatalf("job ran %d times, want 1", job.calls)
	}
	if runs, _ := store.RecentRuns(ctx, "validate-bars", 10); len(runs) != 1 {
		t.Fatalf("skip must not record a run, got %d", len(runs))
	}

	now = base.Add(61 * time.Second)
	if res, _ := r.Run(ctx, job); res.Skipped {
		t.Fatalf("run after interval should not skip")
	}
	if job.calls != 2 {
		t.Fatalf("job ran %d times, want 2", job.calls)
	}
}

func TestRunnerMinIntervalOnlyAppliesToNamedJob(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(memory.New(), metrics.Nop{}, WithMinInterval("validate-bars", time.Hour))
	job := &fakeJob{name: "notify"}
	for i := 0; i < 3; i++ {
		if res, _ := r.Run(ctx, job); res.Skipped {
			t.Fatalf("notify must not be throttled")
		}
	}
}

func TestRunnerStartFailureDoesNotRunJob(t *testing.T) {
	store := memory.New()
	store.FailOn("StartJob", errors.New("db down"))
	r := NewRunner(store, metrics.Nop{})
	job := &fakeJob{name: "notify"}

	if _, err := r.Run(context.Background(), job); err == nil {
		t.Fatalf("expected error")
	}
	if job.calls != 0 {
		t.Fatalf("job must not run when the run row cannot be opened")
	}
}

func TestJobSet(t *testing.T) {
	set := NewJobSet(&fakeJob{name: "notify"}, &fakeJob{name: "ingest-bars"})
	if _, ok := set.Get("notify"); !ok {
		t.Fatalf("notify not found")
	}
	if _, ok := set.Get("nope"); ok {
		t.Fatalf("unknown job found")
	}
	names := set.Names()
	if len(names) != 2 || names[0] != "ingest-bars" {
		t.Fatalf("names = %v", names)
	}
}

func TestBudget(t *testing.T) {
	b := NewBudget(2, 5)
	if !b.CanRequest() {
		t.Fatalf("fresh budget should allow a request")
	}
	b.Spend(1)
	b.Spend(1)
	if b.CanRequest() || !b.Exhausted() {
		t.Fatalf("request cap not enforced")
	}
	if b.Credits != 2 {
		t.Fatalf("credits = %d", b.Credits)
	}

	f := NewBudget(Unlimited, 5)
	f.UseFills(3)
	if f.FillsLeft() != 2 {
		t.Fatalf("fills left = %d", f.FillsLeft())
	}
	f.UseFills(3)
	if f.FillsLeft() != 0 || !f.Exhausted() {
		t.Fatalf("fill cap not enforced")
	}
	if !NewBudget(0, Unlimited).Exhausted() {
		t.Fatalf("zero request cap should be exhausted")
	}
}
