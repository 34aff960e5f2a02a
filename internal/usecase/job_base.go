package usecase

import (
	"context"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	applogger "FxPipe/pkg/logger"
)

// Universe is the (symbol, timeframe) grid the bar jobs iterate, in order.
type Universe struct {
	Symbols    []string
	Timeframes []models.Timeframe
}

// DefaultTimeframes is the fixed ingestion grid.
func DefaultTimeframes() []models.Timeframe { return drepo.Timeframes() }

// jobBase carries the collaborators shared by every job.
type jobBase struct {
	quality drepo.QualityLog
	metrics drepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

func newJobBase(quality drepo.QualityLog, metrics drepo.Metrics) jobBase {
	return jobBase{quality: quality, metrics: metrics, now: time.Now}
}

func (b *jobBase) SetLogger(l *applogger.Logger) { b.logger = l }

// SetClock replaces the job's time source.
func (b *jobBase) SetClock(now func() time.Time) { b.now = now }

// flag appends a quality event. A failing audit write never aborts the unit.
func (b *jobBase) flag(ctx context.Context, symbol string, tf models.Timeframe, at *time.Time,
	kind models.QualityKind, sev models.Severity, details models.QualityDetails) {
	ev := models.QualityEvent{
		Symbol:    symbol,
		Timeframe: tf,
		Kind:      kind,
		Severity:  sev,
		Details:   details,
	}
	if at != nil {
		t := at.UTC()
		ev.Time = &t
	}
	b.metrics.RecordQualityEvent(string(kind), string(sev))
	if err := b.quality.Append(ctx, ev); err != nil {
		b.logger.Warn("quality event not stored",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.String("event_type", string(kind)),
			applogger.Error(err),
		)
	}
}

func ptr[T any](v T) *T { return &v }
