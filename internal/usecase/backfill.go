package usecase

import (
	"context"
	"errors"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/service/ratelimit"
	applogger "FxPipe/pkg/logger"
)

const historyFetchFailed = "History fetch returned empty/error"

// BackfillConfig bounds one ingest-history run.
type BackfillConfig struct {
	MaxRequests int
	OutputSize  int
	Window      time.Duration
}

// HistoryBackfiller walks each series backwards from its oldest stored bar
// until the window is covered or the request cap is reached.
type HistoryBackfiller struct {
	jobBase
	provider drepo.QuoteProvider
	bars     drepo.BarStore
	universe Universe
	cfg      BackfillConfig
	pacer    *ratelimit.Pacer
}

func NewHistoryBackfiller(
	provider drepo.QuoteProvider,
	bars drepo.BarStore,
	quality drepo.QualityLog,
	metrics drepo.Metrics,
	universe Universe,
	cfg BackfillConfig,
	pacer *ratelimit.Pacer,
) *HistoryBackfiller {
	if pacer == nil {
		pacer = ratelimit.NoDelay()
	}
	return &HistoryBackfiller{
		jobBase:  newJobBase(quality, metrics),
		provider: provider,
		bars:     bars,
		universe: universe,
		cfg:      cfg,
		pacer:    pacer,
	}
}

func (j *HistoryBackfiller) Name() string { return JobIngestHistory }

func (j *HistoryBackfiller) Run(ctx context.Context) (models.JobResult, error) {
	var res models.JobResult
	if !j.provider.HasCredentials() {
		return res, models.ErrMissingAPIKey
	}

	budget := NewBudget(j.cfg.MaxRequests, Unlimited)
	var runErr error
outer:
	for _, symbol := range j.universe.Symbols {
		for _, tf := range j.universe.Timeframes {
			if !budget.CanRequest() {
				break outer
			}
			rows, err := j.backfill(ctx, symbol, tf, budget)
			res.RowsProcessed += rows
			if err != nil {
				runErr = err
				break outer
			}
		}
	}
	res.CreditsUsed = budget.Credits
	return res, runErr
}

// backfill runs the backward walk for one series. Only context errors are
// returned; everything else ends the series and is recorded.
func (j *HistoryBackfiller) backfill(ctx context.Context, symbol string, tf models.Timeframe, budget *Budget) (int, error) {
	oldest, err := j.bars.OldestRawTime(ctx, symbol, tf)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		j.logger.Warn("backfill oldest lookup failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
		return 0, nil
	}

	step := tf.Duration()
	targetStart := oldest.Add(-j.cfg.Window)
	cursorEnd := oldest.Add(-step)
	rows := 0

	for !cursorEnd.Before(targetStart) && budget.CanRequest() {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		remaining := max(1, int(cursorEnd.Sub(targetStart)/step)+1)
		end := cursorEnd
		fetched, err := j.provider.TimeSeries(ctx, drepo.SeriesQuery{
			Symbol:     symbol,
			Timeframe:  tf,
			OutputSize: max(1, min(j.cfg.OutputSize, remaining)),
			End:        &end,
			Descending: true,
		})
		budget.Spend(1)
		if err != nil || len(fetched) == 0 {
			msg := historyFetchFailed
			if err != nil {
				msg = err.Error()
			}
			j.flag(ctx, symbol, tf, &end, models.KindIntegrityFail, models.SeverityWarn, models.MessageDetails(msg))
			return rows, nil
		}

		kept := fetched[:0:0]
		for _, b := range fetched {
			if !b.Time.Before(targetStart) && b.Time.Before(oldest) {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			return rows, nil
		}
		if err := j.bars.UpsertRaw(ctx, kept); err != nil {
			j.flag(ctx, symbol, tf, &end, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
			return rows, nil
		}
		rows += len(kept)

		oldestFetched := kept[0].Time
		for _, b := range kept[1:] {
			if b.Time.Before(oldestFetched) {
				oldestFetched = b.Time
			}
		}
		cursorEnd = oldestFetched.Add(-step)

		if budget.CanRequest() {
			if err := j.pacer.Wait(ctx); err != nil {
				return rows, err
			}
		}
	}
	return rows, nil
}
