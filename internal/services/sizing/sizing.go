package sizing

import (
	"math"

	"FxPipe/internal/domain/models"

	"github.com/shopspring/decimal"
)

// LotStep is the broker's minimum lot increment.
var LotStep = decimal.RequireFromString("0.01")

// NeedsRate reports whether a quote->account conversion is required and
// returns the pair to look up ("JPY/USD").
func NeedsRate(inst models.Instrument, accountCcy string) (string, bool) {
	if inst.QuoteCcy == accountCcy || inst.BaseCcy == accountCcy {
		return "", false
	}
	return inst.QuoteCcy + "/" + accountCcy, true
}

// PipValue returns the value of one pip for one lot in account currency.
// rate is the quote->account rate; nil falls back to the quote-currency value.
func PipValue(inst models.Instrument, entry float64, accountCcy string, rate *float64) float64 {
	quoteValue := inst.ContractSize * inst.PipSize
	switch {
	case inst.QuoteCcy == accountCcy:
		return quoteValue
	case inst.BaseCcy == accountCcy:
		return quoteValue / entry
	case rate == nil || *rate == 0:
		return quoteValue
	default:
		return quoteValue * *rate
	}
}

// Result is the sizing outcome for one trade.
type Result struct {
	StopPips   float64
	RiskAmount float64
	Lots       float64
}

// Lots sizes a position so that hitting the stop loses equity*riskPerTrade.
// Lots are floored to LotStep and never negative.
func Lots(entry, stop, pip, equity, riskPerTrade, pipValue float64) Result {
	res := Result{RiskAmount: equity * riskPerTrade}
	if !(pip > 0) {
		return res
	}
	res.StopPips = math.Abs(entry-stop) / pip
	denom := res.StopPips * pipValue
	if denom <= 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return res
	}
	raw := res.RiskAmount / denom
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return res
	}
	// Round off binary noise (0.2499999999 from a 20 pip stop) before flooring.
	lots := decimal.NewFromFloat(raw).Round(8).Div(LotStep).Floor().Mul(LotStep)
	res.Lots = lots.InexactFloat64()
	return res
}

// CorrelationGroups caps concurrent exposure to correlated symbols.
var CorrelationGroups = map[string][]string{
	"USD_MAJORS":  {"EURUSD", "GBPUSD", "AUDUSD"},
	"JPY_CROSSES": {"USDJPY", "EURJPY", "GBPJPY"},
}

// MaxPerGroup is the number of open positions that closes a group.
const MaxPerGroup = 2

// GroupOf returns the correlation group containing symbol.
func GroupOf(symbol string) (string, []string, bool) {
	for name, members := range CorrelationGroups {
		for _, m := range members {
			if m == symbol {
				return name, members, true
			}
		}
	}
	return "", nil, false
}

// ExposureReason names the gate that rejected a trade.
type ExposureReason string

const (
	ExposureOK            ExposureReason = ""
	ExposureMaxTotalRisk  ExposureReason = "max_total_risk"
	ExposureSymbolOpen    ExposureReason = "symbol_open"
	ExposureGroup         ExposureReason = "correlation_group"
	ExposureMaxOpenTrades ExposureReason = "max_open_trades"
)

// Limits are the account-level exposure parameters.
type Limits struct {
	Equity        float64
	MaxTotalRisk  float64
	MaxOpenTrades int // 0 disables the check
}

// CheckExposure applies the gates in order: total risk, same symbol,
// correlation group, open trade count.
func CheckExposure(open []models.OpenPosition, symbol string, newRisk float64, lim Limits) ExposureReason {
	total := 0.0
	for _, p := range open {
		total += p.RiskAmount
	}
	if total+newRisk > lim.Equity*lim.MaxTotalRisk {
		return ExposureMaxTotalRisk
	}
	for _, p := range open {
		if p.Symbol == symbol {
			return ExposureSymbolOpen
		}
	}
	if _, members, ok := GroupOf(symbol); ok {
		n := 0
		for _, p := range open {
			for _, m := range members {
				if p.Symbol == m {
					n++
				}
			}
		}
		if n >= MaxPerGroup {
			return ExposureGroup
		}
	}
	if lim.MaxOpenTrades > 0 && len(open) >= lim.MaxOpenTrades {
		return ExposureMaxOpenTrades
	}
	return ExposureOK
}
