package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/domain/service"
	"FxPipe/internal/services/sizing"
	"FxPipe/internal/services/strategy"
	applogger "FxPipe/pkg/logger"
)

// isoMillis matches the timestamps the alert consumers already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Credentialed reports whether the quote provider can be called.
type Credentialed interface {
	HasCredentials() bool
}

// SignalDeps groups the stores the generator reads and writes.
type SignalDeps struct {
	Bars          drepo.BarStore
	Reference     drepo.ReferenceStore
	State         drepo.StateStore
	Signals       drepo.SignalStore
	Notifications drepo.NotificationStore
	Quality       drepo.QualityLog
}

// SignalGenerator evaluates the newest closed H1 bar of every symbol once
// and emits a sized, deduplicated trade alert for accepted setups.
type SignalGenerator struct {
	jobBase
	deps       SignalDeps
	engine     *strategy.Engine
	rates      service.RateSource
	publisher  drepo.IntentPublisher
	provider   Credentialed
	symbols    []string
	appBaseURL string
}

func NewSignalGenerator(
	deps SignalDeps,
	engine *strategy.Engine,
	rates service.RateSource,
	publisher drepo.IntentPublisher,
	provider Credentialed,
	metrics drepo.Metrics,
	symbols []string,
	appBaseURL string,
) *SignalGenerator {
	return &SignalGenerator{
		jobBase:    newJobBase(deps.Quality, metrics),
		deps:       deps,
		engine:     engine,
		rates:      rates,
		publisher:  publisher,
		provider:   provider,
		symbols:    symbols,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

func (j *SignalGenerator) Name() string { return JobGenerateSignals }

// snapshot is the reference data loaded once per run.
type snapshot struct {
	settings models.SystemSettings
	account  models.AccountState
	open     []models.OpenPosition
}

func (j *SignalGenerator) Run(ctx context.Context) (models.JobResult, error) {
	var res models.JobResult
	if !j.provider.HasCredentials() {
		return res, models.ErrMissingAPIKey
	}

	snap, instruments, err := j.load(ctx)
	if err != nil {
		return res, err
	}

	for _, symbol := range j.symbols {
		inst, ok := instruments[symbol]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if j.evaluateSymbol(ctx, inst, snap) {
			res.RowsProcessed++
		}
	}
	return res, nil
}

func (j *SignalGenerator) load(ctx context.Context) (snapshot, map[string]models.Instrument, error) {
	var snap snapshot

	var stored *models.SystemSettings
	st, err := j.deps.Reference.Settings(ctx)
	switch {
	case err == nil:
		stored = &st
	case !errors.Is(err, models.ErrNotFound):
		return snap, nil, fmt.Errorf("load settings: %w", err)
	}
	snap.settings = stored.Resolved()

	snap.account, err = j.deps.Reference.LatestAccount(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return snap, nil, models.ErrMissingAccount
	}
	if err != nil {
		return snap, nil, fmt.Errorf("load account: %w", err)
	}

	snap.open, err = j.deps.Reference.OpenPositions(ctx)
	if err != nil {
		return snap, nil, fmt.Errorf("load open positions: %w", err)
	}

	list, err := j.deps.Reference.Instruments(ctx)
	if err != nil {
		return snap, nil, fmt.Errorf("load instruments: %w", err)
	}
	if len(list) == 0 {
		return snap, nil, models.ErrMissingInstruments
	}
	instruments := make(map[string]models.Instrument, len(list))
	for _, in := range list {
		instruments[in.Symbol] = in
	}
	return snap, instruments, nil
}

// evaluateSymbol reports whether an intent was created. Once the newest H1
// bar is past the cursor, the cursor moves to it whatever the outcome.
func (j *SignalGenerator) evaluateSymbol(ctx context.Context, inst models.Instrument, snap snapshot) bool {
	symbol := inst.Symbol
	cfg := j.engine.Config()
	log := j.logger.With(applogger.String("symbol", symbol))

	h4, err := j.cleanSeries(ctx, symbol, models.H4, cfg.H4Bars)
	if err != nil {
		log.Warn("signal read h4 failed", applogger.Error(err))
		return false
	}
	h1, err := j.cleanSeries(ctx, symbol, models.H1, cfg.H1Bars)
	if err != nil {
		log.Warn("signal read h1 failed", applogger.Error(err))
		return false
	}
	if !j.engine.HasHistory(h4, h1) {
		j.metrics.RecordDecision(string(strategy.ReasonInsufficientHistory))
		return false
	}

	barTime := h1[len(h1)-1].Time.UTC()
	cursorKey := models.SignalCursorKey(symbol)
	var cursor models.SignalCursor
	err = j.deps.State.GetState(ctx, cursorKey, &cursor)
	switch {
	case err == nil:
		if !cursor.LastBarTime.Before(barTime) {
			return false
		}
	case !errors.Is(err, models.ErrNotFound):
		log.Warn("signal cursor read failed", applogger.Error(err))
		return false
	}

	emitted := j.decide(ctx, log, inst, snap, h4, h1)

	if err := j.deps.State.PutState(ctx, cursorKey, models.SignalCursor{LastBarTime: barTime}); err != nil {
		log.Warn("signal cursor write failed", applogger.Error(err))
	}
	return emitted
}

func (j *SignalGenerator) cleanSeries(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Bar, error) {
	clean, err := j.deps.Bars.RecentClean(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, len(clean))
	for i, c := range clean {
		out[i] = c.Bar
	}
	return out, nil
}

// decide runs the strategy, sizing and exposure gates and persists the
// signal, intent and notification event for an accepted setup.
func (j *SignalGenerator) decide(ctx context.Context, log *applogger.Logger, inst models.Instrument, snap snapshot, h4, h1 []models.Bar) bool {
	cfg := j.engine.Config()
	rr := snap.settings.MinRR

	d := j.engine.Evaluate(h4, h1, inst, rr)
	if !d.Accepted {
		j.metrics.RecordDecision(string(d.Reason))
		log.Debug("setup rejected", applogger.String("reason", string(d.Reason)))
		return false
	}

	var rate *float64
	if pair, need := sizing.NeedsRate(inst, snap.account.Currency); need {
		r, err := j.rates.Rate(ctx, pair)
		if err != nil {
			j.flag(ctx, inst.Symbol, models.H1, nil, models.KindIntegrityFail, models.SeverityWarn,
				models.MessageDetails(fmt.Sprintf("Missing FX rate %s: %s", pair, err.Error())))
			j.metrics.RecordDecision("missing_fx_rate")
			return false
		}
		rate = &r
	}

	pipValue := sizing.PipValue(inst, d.Entry, snap.account.Currency, rate)
	size := sizing.Lots(d.Entry, d.Stop, inst.PipSize, snap.account.Equity, snap.settings.RiskPerTrade, pipValue)

	gate := sizing.CheckExposure(snap.open, inst.Symbol, size.RiskAmount, sizing.Limits{
		Equity:        snap.account.Equity,
		MaxTotalRisk:  snap.settings.MaxTotalRisk,
		MaxOpenTrades: snap.settings.MaxOpenTrades,
	})
	if gate != sizing.ExposureOK {
		j.metrics.RecordDecision(string(gate))
		log.Debug("exposure gate closed", applogger.String("reason", string(gate)))
		return false
	}

	barTime := h1[len(h1)-1].Time.UTC()
	expires := barTime.Add(time.Duration(cfg.ExpiresHours) * time.Hour)

	sig := &models.Signal{
		Symbol:     inst.Symbol,
		Timeframe:  models.H1,
		Side:       d.Trend.Side(),
		Setup:      cfg.Name,
		EntryType:  d.EntryType,
		EntryPrice: d.Entry,
		StopPrice:  d.Stop,
		TP1Price:   d.Target,
		RRExpected: rr,
		Confidence: 1,
		BarTime:    barTime,
		ExpiresAt:  expires,
	}
	if err := j.deps.Signals.InsertSignal(ctx, sig); err != nil {
		log.Warn("signal insert failed", applogger.Error(err))
		j.flag(ctx, inst.Symbol, models.H1, &barTime, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
		return false
	}

	intent := &models.TradeIntent{
		SignalID:       sig.ID,
		Status:         models.IntentStatusNew,
		SuggestedLots:  size.Lots,
		SuggestedEntry: d.Entry,
		SuggestedStop:  d.Stop,
		SuggestedTP1:   d.Target,
		RiskAmount:     size.RiskAmount,
		StopPips:       size.StopPips,
	}
	if err := j.deps.Signals.InsertIntent(ctx, intent); err != nil {
		log.Warn("intent insert failed", applogger.String("signal_id", sig.ID), applogger.Error(err))
		j.flag(ctx, inst.Symbol, models.H1, &barTime, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
		return false
	}

	j.metrics.RecordDecision(string(strategy.ReasonAccepted))
	j.announce(ctx, log, sig, intent, d.Trend, size.Lots)
	return true
}

// DedupeKey identifies one alert per (symbol, bar, direction, setup).
func DedupeKey(symbol string, trend strategy.Trend, barTime time.Time, setup string) string {
	return fmt.Sprintf("%s_H1_%s_%s_%s", symbol, trend, barTime.UTC().Format(time.RFC3339), setup)
}

// announce stores the notification event and publishes the intent. Both
// are best effort once the intent exists.
func (j *SignalGenerator) announce(ctx context.Context, log *applogger.Logger, sig *models.Signal, intent *models.TradeIntent, trend strategy.Trend, lots float64) {
	label := trend.Label()
	ev := &models.NotificationEvent{
		EventType: models.EventTradeIntentCreated,
		DedupeKey: DedupeKey(sig.Symbol, trend, sig.BarTime, sig.Setup),
		Status:    models.EventPending,
		Payload: models.AlertPayload{
			Title:     fmt.Sprintf("TRADE ALERT: %s H1 %s", sig.Symbol, label),
			Symbol:    sig.Symbol,
			TF:        string(models.H1),
			Side:      label,
			Entry:     sig.EntryPrice,
			SL:        sig.StopPrice,
			TP1:       sig.TP1Price,
			RR:        sig.RRExpected,
			Lots:      lots,
			ExpiresAt: sig.ExpiresAt.UTC().Format(isoMillis),
			URL:       fmt.Sprintf("%s/signals/%s", j.appBaseURL, sig.ID),
		},
	}
	if err := j.deps.Notifications.InsertEvent(ctx, ev); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			log.Info("alert already queued", applogger.String("dedupe_key", ev.DedupeKey))
		} else {
			log.Warn("notification event insert failed", applogger.Error(err))
			at := sig.BarTime
			j.flag(ctx, sig.Symbol, models.H1, &at, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
		}
		return
	}

	if j.publisher == nil {
		return
	}
	err := j.publisher.PublishIntent(ctx, models.IntentEvent{
		EventType: ev.EventType,
		EventID:   ev.ID,
		DedupeKey: ev.DedupeKey,
		SignalID:  sig.ID,
		IntentID:  intent.ID,
		Payload:   ev.Payload,
	})
	if err != nil {
		log.Warn("intent publish failed", applogger.String("event_id", ev.ID), applogger.Error(err))
	}
}
