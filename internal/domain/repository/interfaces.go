package repository

import (
	"context"
	"time"

	"FxPipe/internal/domain/models"
)

// BarStore holds the raw and clean bar series. Upserts are keyed by
// (symbol, timeframe, time) and overwrite existing rows.
type BarStore interface {
	UpsertRaw(ctx context.Context, bars []models.Bar) error
	UpsertClean(ctx context.Context, bars []models.CleanBar) error
	// OldestRawTime returns ErrNotFound when the series is empty.
	OldestRawTime(ctx context.Context, symbol string, tf Timeframe) (time.Time, error)
	// RawTimesSince lists stored raw bar times >= from, ascending.
	RawTimesSince(ctx context.Context, symbol string, tf Timeframe, from time.Time) ([]time.Time, error)
	// RecentRaw returns the newest limit raw bars in ascending time order.
	RecentRaw(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Bar, error)
	// RecentClean returns the newest limit clean bars in ascending time order.
	RecentClean(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.CleanBar, error)
}

// QualityLog is the append-only quality audit trail.
type QualityLog interface {
	Append(ctx context.Context, ev models.QualityEvent) error
	Recent(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.QualityEvent, error)
}

// ReferenceStore reads externally maintained inputs.
type ReferenceStore interface {
	Instruments(ctx context.Context) ([]models.Instrument, error)
	// LatestAccount returns ErrNotFound when no account row exists.
	LatestAccount(ctx context.Context) (models.AccountState, error)
	// Settings returns ErrNotFound when the singleton row is missing.
	Settings(ctx context.Context) (models.SystemSettings, error)
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
}

// JobStore records job runs.
type JobStore interface {
	StartJob(ctx context.Context, name string, at time.Time) (string, error)
	FinishJob(ctx context.Context, id string, at time.Time, rows, credits int, errorSummary *string) error
	// LatestRun returns ErrNotFound when the job never ran.
	LatestRun(ctx context.Context, name string) (models.JobRun, error)
	RecentRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error)
}

// StateStore is a generic JSON key/value store.
type StateStore interface {
	// GetState decodes the value into dst; returns ErrNotFound when missing.
	GetState(ctx context.Context, key string, dst interface{}) error
	PutState(ctx context.Context, key string, value interface{}) error
}

// SignalStore inserts signals and their intents.
type SignalStore interface {
	InsertSignal(ctx context.Context, s *models.Signal) error
	InsertIntent(ctx context.Context, in *models.TradeIntent) error
}

// PendingFilter drops events whose every channel is already sent or out of
// attempts. A zero filter keeps every pending and partial event.
type PendingFilter struct {
	Channels    []models.Channel
	MaxAttempts int
}

// Enabled reports whether the filter constrains anything.
func (f PendingFilter) Enabled() bool { return len(f.Channels) > 0 && f.MaxAttempts > 0 }

// NotificationStore holds events, deliveries and push subscriptions.
type NotificationStore interface {
	// InsertEvent returns ErrDuplicate when the dedupe key already exists.
	InsertEvent(ctx context.Context, ev *models.NotificationEvent) error
	// PendingEvents returns pending and partial events, oldest first, that
	// still have a channel left to attempt under f.
	PendingEvents(ctx context.Context, limit int, f PendingFilter) ([]models.NotificationEvent, error)
	Deliveries(ctx context.Context, eventID string) ([]models.NotificationDelivery, error)
	UpsertDelivery(ctx context.Context, d models.NotificationDelivery) error
	SetEventStatus(ctx context.Context, eventID string, status models.EventStatus) error
	PushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
}

// SeriesQuery describes one provider time-series request.
type SeriesQuery struct {
	Symbol     string
	Timeframe  Timeframe
	OutputSize int
	Start      *time.Time
	End        *time.Time
	Descending bool
}

// QuoteProvider is the external price-data API.
type QuoteProvider interface {
	TimeSeries(ctx context.Context, q SeriesQuery) ([]models.Bar, error)
	ExchangeRate(ctx context.Context, pair string) (float64, error)
	HasCredentials() bool
}

// IntentPublisher announces stored intents to downstream consumers.
type IntentPublisher interface {
	PublishIntent(ctx context.Context, ev models.IntentEvent) error
	Close() error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordJobRun(job, outcome string, seconds float64)
	RecordJobRows(job string, rows, credits int)
	RecordQualityEvent(kind, severity string)
	RecordDelivery(channel, status string)
	RecordDecision(reason string)
	RecordProviderRequest(endpoint, result string, seconds float64)
}
