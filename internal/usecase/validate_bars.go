package usecase

import (
	"context"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/services/indicators"
	applogger "FxPipe/pkg/logger"
)

// Quality scoring.
const (
	scoreFull           = 100
	penaltyIntegrity    = 60
	penaltyContinuity   = 20
	penaltyOutlier      = 20
	outlierATRMultiple  = 6
	validateATRPeriod   = 14
	integrityFailReason = "OHLC integrity check failed"
)

// BarValidator scores the most recent raw bars of each series and upserts
// them into the clean series.
type BarValidator struct {
	jobBase
	bars     drepo.BarStore
	universe Universe
	lookback int
}

func NewBarValidator(bars drepo.BarStore, quality drepo.QualityLog, metrics drepo.Metrics, universe Universe, lookback int) *BarValidator {
	return &BarValidator{
		jobBase:  newJobBase(quality, metrics),
		bars:     bars,
		universe: universe,
		lookback: lookback,
	}
}

func (j *BarValidator) Name() string { return JobValidateBars }

func (j *BarValidator) Run(ctx context.Context) (models.JobResult, error) {
	var res models.JobResult
	for _, symbol := range j.universe.Symbols {
		for _, tf := range j.universe.Timeframes {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			raw, err := j.bars.RecentRaw(ctx, symbol, tf, j.lookback)
			if err != nil {
				j.logger.Warn("validate read failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
				continue
			}
			if len(raw) == 0 {
				continue
			}

			clean := j.score(ctx, raw, tf)
			if err := j.bars.UpsertClean(ctx, clean); err != nil {
				j.logger.Warn("validate upsert failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
				j.flag(ctx, symbol, tf, nil, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
				continue
			}
			res.RowsProcessed += len(clean)
		}
	}
	return res, nil
}

// score applies the integrity, continuity and outlier checks to an
// ascending series, recording one quality event per failed check.
func (j *BarValidator) score(ctx context.Context, raw []models.Bar, tf models.Timeframe) []models.CleanBar {
	atr := indicators.ATR(raw, validateATRPeriod)
	step := tf.Duration()
	validated := j.now().UTC()

	out := make([]models.CleanBar, 0, len(raw))
	for i, b := range raw {
		at := b.Time
		q := scoreFull

		if !b.OHLCValid() {
			q -= penaltyIntegrity
			j.flag(ctx, b.Symbol, tf, &at, models.KindIntegrityFail, models.SeverityCritical, models.IntegrityDetails(integrityFailReason))
		}
		if i > 0 {
			if gap := b.Time.Sub(raw[i-1].Time); gap != step {
				q -= penaltyContinuity
				j.flag(ctx, b.Symbol, tf, &at, models.KindGap, models.SeverityWarn, models.GapDetails(gap))
			}
		}
		prevClose := b.Close
		if i > 0 {
			prevClose = raw[i-1].Close
		}
		if rng := indicators.TrueRange(b, prevClose); atr[i] > 0 && rng > atr[i]*outlierATRMultiple {
			q -= penaltyOutlier
			j.flag(ctx, b.Symbol, tf, &at, models.KindOutlier, models.SeverityWarn, models.OutlierDetails(rng, atr[i]))
		}

		out = append(out, models.CleanBar{Bar: b, QualityScore: max(0, q), ValidatedAt: validated})
	}
	return out
}
