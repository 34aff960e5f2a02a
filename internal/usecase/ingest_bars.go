package usecase

import (
	"context"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/service/ratelimit"
	applogger "FxPipe/pkg/logger"
)

// BarIngestor pulls the latest few bars for every (symbol, timeframe) and
// upserts them into the raw series.
type BarIngestor struct {
	jobBase
	provider   drepo.QuoteProvider
	bars       drepo.BarStore
	universe   Universe
	outputSize int
	pacer      *ratelimit.Pacer
}

func NewBarIngestor(
	provider drepo.QuoteProvider,
	bars drepo.BarStore,
	quality drepo.QualityLog,
	metrics drepo.Metrics,
	universe Universe,
	outputSize int,
	pacer *ratelimit.Pacer,
) *BarIngestor {
	if pacer == nil {
		pacer = ratelimit.NoDelay()
	}
	return &BarIngestor{
		jobBase:    newJobBase(quality, metrics),
		provider:   provider,
		bars:       bars,
		universe:   universe,
		outputSize: outputSize,
		pacer:      pacer,
	}
}

// emptyPayloadMessage is recorded when the provider answers without rows.
const emptyPayloadMessage = "Unknown error"

func (j *BarIngestor) Name() string { return JobIngestBars }

func (j *BarIngestor) Run(ctx context.Context) (models.JobResult, error) {
	var res models.JobResult
	if !j.provider.HasCredentials() {
		return res, models.ErrMissingAPIKey
	}

	budget := NewBudget(Unlimited, Unlimited)

	units := len(j.universe.Symbols) * len(j.universe.Timeframes)
	done := 0
	for _, symbol := range j.universe.Symbols {
		for _, tf := range j.universe.Timeframes {
			if err := ctx.Err(); err != nil {
				res.CreditsUsed = budget.Credits
				return res, err
			}

			bars, err := j.provider.TimeSeries(ctx, drepo.SeriesQuery{
				Symbol:     symbol,
				Timeframe:  tf,
				OutputSize: j.outputSize,
			})
			budget.Spend(1)
			switch {
			case err != nil:
				j.logger.Warn("ingest fetch failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
				j.flag(ctx, symbol, tf, nil, models.KindIntegrityFail, models.SeverityWarn, models.MessageDetails(err.Error()))
			case len(bars) == 0:
				j.logger.Warn("ingest returned no bars", applogger.String("symbol", symbol), applogger.String("tf", string(tf)))
				j.flag(ctx, symbol, tf, nil, models.KindIntegrityFail, models.SeverityWarn, models.MessageDetails(emptyPayloadMessage))
			default:
				if err := j.bars.UpsertRaw(ctx, bars); err != nil {
					j.logger.Warn("ingest upsert failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
					j.flag(ctx, symbol, tf, nil, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
				} else {
					res.RowsProcessed += len(bars)
				}
			}

			done++
			if done < units {
				if err := j.pacer.Wait(ctx); err != nil {
					res.CreditsUsed = budget.Credits
					return res, err
				}
			}
		}
	}
	res.CreditsUsed = budget.Credits
	return res, nil
}
