package usecase

import (
	"context"
	"errors"
	"testing"

	"FxPipe/internal/domain/models"
	"FxPipe/internal/repository/memory"
	"FxPipe/pkg/metrics"
)

func runValidator(t *testing.T, raw []models.Bar, lookback int) (*memory.Store, models.JobResult) {
	t.Helper()
	store := memory.New()
	if err := store.UpsertRaw(context.Background(), raw); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u := Universe{Symbols: []string{"EURUSD"}, Timeframes: []models.Timeframe{models.H1}}
	res, err := NewBarValidator(store, store, metrics.Nop{}, u, lookback).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return store, res
}

func TestValidatorCleanSeries(t *testing.T) {
	store, res := runValidator(t, barsAt("EURUSD", models.H1, span(0, 19)...), 200)
	if res.RowsProcessed != 20 {
		t.Fatalf("rows = %d", res.RowsProcessed)
	}
	if n := len(store.QualityEvents()); n != 0 {
		t.Fatalf("events = %d, want 0", n)
	}
	cb, ok := store.CleanBar("EURUSD", models.H1, at(models.H1, 7))
	if !ok || cb.QualityScore != 100 {
		t.Fatalf("clean bar = %+v (found=%v)", cb, ok)
	}
}

func TestValidatorIntegrityFailure(t *testing.T) {
	raw := barsAt("EURUSD", models.H1, span(0, 19)...)
	raw[10].High, raw[10].Low = 1.09, 1.11

	store, _ := runValidator(t, raw, 200)
	cb, _ := store.CleanBar("EURUSD", models.H1, at(models.H1, 10))
	if cb.QualityScore > 40 {
		t.Fatalf("score = %d, want <= 40", cb.QualityScore)
	}
	var integrity []models.QualityEvent
	for _, ev := range store.QualityEvents() {
		if ev.Kind == models.KindIntegrityFail {
			integrity = append(integrity, ev)
		}
	}
	if len(integrity) != 1 {
		t.Fatalf("integrity events = %d, want 1", len(integrity))
	}
	ev := integrity[0]
	if ev.Severity != models.SeverityCritical || ev.Details.Reason != "OHLC integrity check failed" || !ev.Time.Equal(at(models.H1, 10)) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestValidatorContinuityGap(t *testing.T) {
	idx := append(span(0, 4), span(6, 9)...)
	store, res := runValidator(t, barsAt("EURUSD", models.H1, idx...), 200)
	if res.RowsProcessed != 9 {
		t.Fatalf("rows = %d", res.RowsProcessed)
	}
	events := store.QualityEvents()
	if len(events) != 1 || events[0].Kind != models.KindGap {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Details.GapMs == nil || *events[0].Details.GapMs != 7200000 {
		t.Fatalf("gap_ms = %v", events[0].Details.GapMs)
	}
	cb, _ := store.CleanBar("EURUSD", models.H1, at(models.H1, 6))
	if cb.QualityScore != 80 {
		t.Fatalf("score = %d, want 80", cb.QualityScore)
	}
}

func TestValidatorOutlier(t *testing.T) {
	raw := barsAt("EURUSD", models.H1, span(0, 19)...)
	raw[15].High, raw[15].Low = 1.2, 1.0

	store, _ := runValidator(t, raw, 200)
	cb, _ := store.CleanBar("EURUSD", models.H1, at(models.H1, 15))
	if cb.QualityScore != 80 {
		t.Fatalf("score = %d, want 80", cb.QualityScore)
	}
	events := store.QualityEvents()
	if len(events) != 1 || events[0].Kind != models.KindOutlier || events[0].Details.Range == nil {
		t.Fatalf("events = %+v", events)
	}
}

func TestValidatorOutlierUsesPreviousClose(t *testing.T) {
	raw := barsAt("EURUSD", models.H1, span(0, 19)...)
	// A narrow bar that opens far above the previous close.
	for i := 15; i < len(raw); i++ {
		raw[i].Open, raw[i].High, raw[i].Low, raw[i].Close = 1.3, 1.301, 1.299, 1.3
	}

	store, _ := runValidator(t, raw, 200)
	cb, _ := store.CleanBar("EURUSD", models.H1, at(models.H1, 15))
	if cb.QualityScore != 80 {
		t.Fatalf("score = %d, want 80", cb.QualityScore)
	}
	events := store.QualityEvents()
	if len(events) != 1 || events[0].Kind != models.KindOutlier || !events[0].Time.Equal(at(models.H1, 15)) {
		t.Fatalf("events = %+v", events)
	}
}

func TestValidatorPenaltiesStack(t *testing.T) {
	idx := append(span(0, 14), span(16, 19)...)
	raw := barsAt("EURUSD", models.H1, idx...)
	// First bar after the hole: close above high, huge range.
	raw[15].High, raw[15].Low, raw[15].Close = 1.5, 0.7, 1.6

	store, _ := runValidator(t, raw, 200)
	cb, _ := store.CleanBar("EURUSD", models.H1, at(models.H1, 16))
	if cb.QualityScore != 0 {
		t.Fatalf("score = %d, want 0", cb.QualityScore)
	}
	kinds := map[models.QualityKind]int{}
	for _, ev := range store.QualityEvents() {
		kinds[ev.Kind]++
	}
	if kinds[models.KindIntegrityFail] != 1 || kinds[models.KindGap] != 1 || kinds[models.KindOutlier] != 1 {
		t.Fatalf("events by kind = %v", kinds)
	}
}

func TestValidatorLookbackUsesNewestBars(t *testing.T) {
	store, res := runValidator(t, barsAt("EURUSD", models.H1, span(0, 29)...), 10)
	if res.RowsProcessed != 10 {
		t.Fatalf("rows = %d, want 10", res.RowsProcessed)
	}
	if _, ok := store.CleanBar("EURUSD", models.H1, at(models.H1, 0)); ok {
		t.Fatalf("oldest bar should be outside the lookback")
	}
	if _, ok := store.CleanBar("EURUSD", models.H1, at(models.H1, 29)); !ok {
		t.Fatalf("newest bar should be validated")
	}
}

func TestValidatorUpsertFailureIsCritical(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.UpsertRaw(ctx, barsAt("EURUSD", models.H1, 0, 1, 2)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.FailOn("UpsertClean", errors.New("deadlock detected"))
	u := Universe{Symbols: []string{"EURUSD"}, Timeframes: []models.Timeframe{models.H1}}

	res, err := NewBarValidator(store, store, metrics.Nop{}, u, 200).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 0 {
		t.Fatalf("rows = %d, want 0", res.RowsProcessed)
	}
	events := store.QualityEvents()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != models.KindIntegrityFail || ev.Severity != models.SeverityCritical || ev.Details.Message != "deadlock detected" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
