package strategy

import (
	"math"

	"FxPipe/internal/domain/models"
	"FxPipe/internal/services/indicators"
)

// Trend is the H4 directional bias.
type Trend string

const (
	TrendBull Trend = "bull"
	TrendBear Trend = "bear"
	TrendNone Trend = "none"
)

// Side maps the trend to a trade side.
func (t Trend) Side() models.Side {
	if t == TrendBull {
		return models.SideBuy
	}
	return models.SideSell
}

// Label is the upper-case side used in alert titles.
func (t Trend) Label() string {
	if t == TrendBull {
		return "BUY"
	}
	return "SELL"
}

// Reason explains why a bar was rejected. ReasonAccepted marks success.
type Reason string

const (
	ReasonAccepted            Reason = "accepted"
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonNoTrend             Reason = "no_trend"
	ReasonOverextended        Reason = "overextended"
	ReasonNoTouch             Reason = "no_touch"
	ReasonNoConfirmation      Reason = "no_confirmation"
	ReasonStopFloor           Reason = "stop_floor"
	ReasonStructureBlock      Reason = "structure_block"
	ReasonInvalidInstrument   Reason = "invalid_instrument"
)

// Decision is the outcome of evaluating the latest closed H1 bar.
type Decision struct {
	Accepted  bool
	Reason    Reason
	Trend     Trend
	Entry     float64
	EntryType models.EntryType
	Stop      float64
	Target    float64
	ATR       float64
}

func reject(r Reason, t Trend) Decision { return Decision{Reason: r, Trend: t} }

// H1Indicators are the series the H1 filters read.
type H1Indicators struct {
	EMAFast []float64
	EMASlow []float64
	ATR     []float64
}

// Engine evaluates TPC setups. It is stateless.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine { return &Engine{cfg: cfg} }

func (e *Engine) Config() Config { return e.cfg }

// HasHistory reports whether both series are long enough to be evaluated at all.
func (e *Engine) HasHistory(h4, h1 []models.Bar) bool {
	return len(h4) >= e.cfg.H4EMASlow && len(h1) >= e.cfg.H1EMASlow
}

// Trend needs H4EMASlow+H4SlopeLookback bars; shorter series are TrendNone.
func (e *Engine) Trend(h4 []models.Bar) Trend {
	if len(h4) < e.cfg.H4EMASlow+e.cfg.H4SlopeLookback {
		return TrendNone
	}
	closes := indicators.Closes(h4)
	fast := indicators.EMA(closes, e.cfg.H4EMAFast)
	slow := indicators.EMA(closes, e.cfg.H4EMASlow)
	last := len(h4) - 1
	slope := fast[last] - fast[last-e.cfg.H4SlopeLookback]

	switch {
	case closes[last] > slow[last] && fast[last] > slow[last] && slope > 0:
		return TrendBull
	case closes[last] < slow[last] && fast[last] < slow[last] && slope < 0:
		return TrendBear
	default:
		return TrendNone
	}
}

func (e *Engine) H1Indicators(h1 []models.Bar) H1Indicators {
	closes := indicators.Closes(h1)
	return H1Indicators{
		EMAFast: indicators.EMA(closes, e.cfg.H1EMAFast),
		EMASlow: indicators.EMA(closes, e.cfg.H1EMASlow),
		ATR:     indicators.ATR(h1, e.cfg.H1ATR),
	}
}

// Overextended is true when the last close sits more than OverextendATR
// ATRs beyond the fast EMA in the trend direction.
func (e *Engine) Overextended(h1 []models.Bar, ind H1Indicators, trend Trend) bool {
	last := len(h1) - 1
	c, ema, atr := h1[last].Close, ind.EMAFast[last], ind.ATR[last]
	switch trend {
	case TrendBull:
		return c > ema+e.cfg.OverextendATR*atr
	case TrendBear:
		return c < ema-e.cfg.OverextendATR*atr
	default:
		return true
	}
}

// Touched returns the first bar in the lookback window that came within
// TouchATR ATRs of the fast EMA.
func (e *Engine) Touched(h1 []models.Bar, ind H1Indicators, trend Trend) (int, bool) {
	last := len(h1) - 1
	for i := max(0, last-e.cfg.TouchLookback); i <= last; i++ {
		band := e.cfg.TouchATR * ind.ATR[i]
		switch trend {
		case TrendBull:
			if h1[i].Low <= ind.EMAFast[i]+band {
				return i, true
			}
		case TrendBear:
			if h1[i].High >= ind.EMAFast[i]-band {
				return i, true
			}
		}
	}
	return 0, false
}

// Confirm requires the last close to break the previous bar's extreme.
// The entry is a stop order at the last bar's extreme.
func Confirm(h1 []models.Bar, trend Trend) (float64, models.EntryType, bool) {
	last := len(h1) - 1
	if last < 1 {
		return 0, "", false
	}
	prev, curr := h1[last-1], h1[last]
	if trend == TrendBull && curr.Close > prev.High {
		return curr.High, models.EntryStop, true
	}
	if trend == TrendBear && curr.Close < prev.Low {
		return curr.Low, models.EntryStop, true
	}
	return 0, "", false
}

// Stop takes the further of the last swing and the pullback extreme, then
// adds a buffer of max(ATR*BufferATRMultiple, one pip).
func (e *Engine) Stop(h1 []models.Bar, trend Trend, atr, pip float64) float64 {
	var swings []int
	if trend == TrendBull {
		swings = indicators.SwingLows(h1, e.cfg.SwingLeft, e.cfg.SwingRight)
	} else {
		swings = indicators.SwingHighs(h1, e.cfg.SwingLeft, e.cfg.SwingRight)
	}
	ref := h1[len(h1)-1]
	if len(swings) > 0 {
		ref = h1[swings[len(swings)-1]]
	}

	window := h1[max(0, len(h1)-e.cfg.PullbackWindow):]
	buffer := math.Max(atr*e.cfg.BufferATRMultiple, pip)

	if trend == TrendBull {
		lowest := ref.Low
		for _, b := range window {
			lowest = math.Min(lowest, b.Low)
		}
		return lowest - buffer
	}
	highest := ref.High
	for _, b := range window {
		highest = math.Max(highest, b.High)
	}
	return highest + buffer
}

// PassesStopFloor rejects stops tighter than MinATRMultiple ATRs.
func (e *Engine) PassesStopFloor(entry, stop, atr, pip float64) bool {
	stopPips := math.Abs(entry-stop) / pip
	minPips := (atr / pip) * e.cfg.MinATRMultiple
	return stopPips >= minPips
}

// Target projects rr risk units from entry in the trend direction.
func Target(entry, stop float64, trend Trend, rr float64) float64 {
	r := math.Abs(entry - stop)
	if trend == TrendBull {
		return entry + rr*r
	}
	return entry - rr*r
}

// StructureBlocks is true when the nearest opposing H4 swing beyond entry
// falls short of the target.
func (e *Engine) StructureBlocks(h4 []models.Bar, entry, tp float64, trend Trend) bool {
	if trend == TrendBull {
		nearest := math.Inf(1)
		for _, i := range indicators.SwingHighs(h4, e.cfg.SwingLeft, e.cfg.SwingRight) {
			if lvl := h4[i].High; lvl > entry && lvl < nearest {
				nearest = lvl
			}
		}
		return !math.IsInf(nearest, 1) && nearest < tp
	}
	nearest := math.Inf(-1)
	for _, i := range indicators.SwingLows(h4, e.cfg.SwingLeft, e.cfg.SwingRight) {
		if lvl := h4[i].Low; lvl < entry && lvl > nearest {
			nearest = lvl
		}
	}
	return !math.IsInf(nearest, -1) && nearest > tp
}

// Evaluate runs the technical pipeline on ascending H4/H1 series and either
// accepts the latest H1 bar with entry, stop and target or names the first
// filter that rejected it.
func (e *Engine) Evaluate(h4, h1 []models.Bar, inst models.Instrument, rr float64) Decision {
	// Stop floors and pip distances divide by the pip size.
	if !(inst.PipSize > 0) || math.IsInf(inst.PipSize, 0) {
		return reject(ReasonInvalidInstrument, TrendNone)
	}
	if !e.HasHistory(h4, h1) {
		return reject(ReasonInsufficientHistory, TrendNone)
	}

	trend := e.Trend(h4)
	if trend == TrendNone {
		return reject(ReasonNoTrend, trend)
	}

	ind := e.H1Indicators(h1)
	if e.Overextended(h1, ind, trend) {
		return reject(ReasonOverextended, trend)
	}
	if _, ok := e.Touched(h1, ind, trend); !ok {
		return reject(ReasonNoTouch, trend)
	}
	entry, entryType, ok := Confirm(h1, trend)
	if !ok {
		return reject(ReasonNoConfirmation, trend)
	}

	atr := ind.ATR[len(ind.ATR)-1]
	stop := e.Stop(h1, trend, atr, inst.PipSize)
	if !e.PassesStopFloor(entry, stop, atr, inst.PipSize) {
		return reject(ReasonStopFloor, trend)
	}

	tp := Target(entry, stop, trend, rr)
	if e.StructureBlocks(h4, entry, tp, trend) {
		return reject(ReasonStructureBlock, trend)
	}

	return Decision{
		Accepted:  true,
		Reason:    ReasonAccepted,
		Trend:     trend,
		Entry:     entry,
		EntryType: entryType,
		Stop:      stop,
		Target:    tp,
		ATR:       atr,
	}
}
