package usecase

import (
	"context"
	"sort"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/service/ratelimit"
	applogger "FxPipe/pkg/logger"
)

// TimeRange is an inclusive run of consecutive bar times.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Bars is the number of bar slots the range covers.
func (r TimeRange) Bars(step time.Duration) int {
	return int(r.End.Sub(r.Start)/step) + 1
}

// BuildMissingRanges sorts the missing times and merges runs spaced exactly
// one step apart into inclusive ranges.
func BuildMissingRanges(missing []time.Time, step time.Duration) []TimeRange {
	if len(missing) == 0 {
		return nil
	}
	sorted := append([]time.Time(nil), missing...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var out []TimeRange
	start, prev := sorted[0], sorted[0]
	for _, t := range sorted[1:] {
		if t.Sub(prev) == step {
			prev = t
			continue
		}
		out = append(out, TimeRange{Start: start, End: prev})
		start, prev = t, t
	}
	return append(out, TimeRange{Start: start, End: prev})
}

// GapConfig bounds one fill-missing-bars run.
type GapConfig struct {
	MaxRequests int
	OutputSize  int
	MaxFillBars int
}

// GapFiller finds holes between the oldest stored bar and the latest
// closed bar of each series and refetches them range by range.
type GapFiller struct {
	jobBase
	provider drepo.QuoteProvider
	bars     drepo.BarStore
	universe Universe
	cfg      GapConfig
	pacer    *ratelimit.Pacer
}

func NewGapFiller(
	provider drepo.QuoteProvider,
	bars drepo.BarStore,
	quality drepo.QualityLog,
	metrics drepo.Metrics,
	universe Universe,
	cfg GapConfig,
	pacer *ratelimit.Pacer,
) *GapFiller {
	if pacer == nil {
		pacer = ratelimit.NoDelay()
	}
	return &GapFiller{
		jobBase:  newJobBase(quality, metrics),
		provider: provider,
		bars:     bars,
		universe: universe,
		cfg:      cfg,
		pacer:    pacer,
	}
}

func (j *GapFiller) Name() string { return JobFillMissingBars }

func (j *GapFiller) Run(ctx context.Context) (models.JobResult, error) {
	res := models.JobResult{RequestsMade: ptr(0), MissingDetected: ptr(0)}
	if !j.provider.HasCredentials() {
		return res, models.ErrMissingAPIKey
	}

	budget := NewBudget(j.cfg.MaxRequests, j.cfg.MaxFillBars)
	now := j.now().UTC()
	var runErr error
outer:
	for _, symbol := range j.universe.Symbols {
		for _, tf := range j.universe.Timeframes {
			if budget.Exhausted() {
				break outer
			}
			missing, err := j.fillSeries(ctx, symbol, tf, now, budget)
			*res.MissingDetected += missing
			if err != nil {
				runErr = err
				break outer
			}
		}
	}
	res.RowsProcessed = budget.Fills
	res.CreditsUsed = budget.Credits
	*res.RequestsMade = budget.Requests
	return res, runErr
}

// missingTimes lists the absent slots from the oldest stored bar up to and
// including latest.
func (j *GapFiller) missingTimes(ctx context.Context, symbol string, tf models.Timeframe, latest time.Time) ([]time.Time, error) {
	stored, err := j.bars.RawTimesSince(ctx, symbol, tf, time.Time{})
	if err != nil {
		return nil, err
	}
	existing := make(map[int64]struct{}, len(stored))
	var oldest time.Time
	for _, t := range stored {
		if t.After(latest) {
			continue
		}
		if len(existing) == 0 || t.Before(oldest) {
			oldest = t
		}
		existing[t.UnixMilli()] = struct{}{}
	}
	if len(existing) == 0 {
		return nil, nil
	}

	var missing []time.Time
	step := tf.Duration()
	for t := oldest; !t.After(latest); t = t.Add(step) {
		if _, ok := existing[t.UnixMilli()]; !ok {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

// fillSeries returns the number of missing slots detected. Only context
// errors are returned.
func (j *GapFiller) fillSeries(ctx context.Context, symbol string, tf models.Timeframe, now time.Time, budget *Budget) (int, error) {
	latest := tf.LatestClosed(now)
	if latest.UnixMilli() <= 0 {
		return 0, nil
	}
	missing, err := j.missingTimes(ctx, symbol, tf, latest)
	if err != nil {
		j.logger.Warn("gap scan failed", applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
		return 0, nil
	}
	if len(missing) == 0 {
		return 0, nil
	}

	target := missing[:min(len(missing), budget.FillsLeft())]
	if len(target) == 0 {
		return len(missing), nil
	}
	wanted := make(map[int64]struct{}, len(target))
	for _, t := range target {
		wanted[t.UnixMilli()] = struct{}{}
	}

	step := tf.Duration()
	for _, rg := range BuildMissingRanges(target, step) {
		if budget.Exhausted() {
			break
		}
		if err := ctx.Err(); err != nil {
			return len(missing), err
		}

		start, end := rg.Start, rg.End
		fetched, err := j.provider.TimeSeries(ctx, drepo.SeriesQuery{
			Symbol:     symbol,
			Timeframe:  tf,
			OutputSize: max(1, min(j.cfg.OutputSize, rg.Bars(step)+4)),
			Start:      &start,
			End:        &end,
		})
		budget.Spend(1)
		if err != nil || len(fetched) == 0 {
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			j.flag(ctx, symbol, tf, &start, models.KindGap, models.SeverityWarn, models.GapFillDetails(msg, start, end))
			continue
		}

		var kept []models.Bar
		for _, b := range fetched {
			if _, ok := wanted[b.Time.UnixMilli()]; ok {
				kept = append(kept, b)
			}
		}
		kept = kept[:min(len(kept), budget.FillsLeft())]
		if len(kept) == 0 {
			continue
		}
		if err := j.bars.UpsertRaw(ctx, kept); err != nil {
			j.flag(ctx, symbol, tf, &start, models.KindIntegrityFail, models.SeverityCritical, models.MessageDetails(err.Error()))
			continue
		}
		budget.UseFills(len(kept))

		if budget.CanRequest() {
			if err := j.pacer.Wait(ctx); err != nil {
				return len(missing), err
			}
		}
	}
	return len(missing), nil
}
