package models

import "time"

// Instrument is externally maintained reference data.
type Instrument struct {
	Symbol       string  `db:"symbol" json:"symbol"`
	PipSize      float64 `db:"pip_size" json:"pip_size"`
	Digits       int     `db:"digits" json:"digits"`
	ContractSize float64 `db:"contract_size" json:"contract_size"`
	BaseCcy      string  `db:"base_ccy" json:"base_ccy"`
	QuoteCcy     string  `db:"quote_ccy" json:"quote_ccy"`
}

// AccountState is the latest known equity; the newest row wins.
type AccountState struct {
	Equity    float64   `db:"equity" json:"equity"`
	Currency  string    `db:"currency" json:"currency"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SystemSettings is a singleton row. Zero values fall back to defaults.
type SystemSettings struct {
	RiskPerTrade  float64 `db:"risk_per_trade" json:"risk_per_trade"`
	MaxTotalRisk  float64 `db:"max_total_risk" json:"max_total_risk"`
	MinRR         float64 `db:"min_rr" json:"min_rr"`
	MaxOpenTrades int     `db:"max_open_trades" json:"max_open_trades"`
}

const (
	DefaultRiskPerTrade = 0.005
	DefaultMaxTotalRisk = 0.015
	DefaultMinRR        = 2.5
)

// Resolved returns a copy with unset fields replaced by defaults.
func (s *SystemSettings) Resolved() SystemSettings {
	out := SystemSettings{}
	if s != nil {
		out = *s
	}
	if out.RiskPerTrade <= 0 {
		out.RiskPerTrade = DefaultRiskPerTrade
	}
	if out.MaxTotalRisk <= 0 {
		out.MaxTotalRisk = DefaultMaxTotalRisk
	}
	if out.MinRR <= 0 {
		out.MinRR = DefaultMinRR
	}
	return out
}

// OpenPosition is read-only input for exposure accounting.
type OpenPosition struct {
	Symbol     string  `db:"symbol" json:"symbol"`
	RiskAmount float64 `db:"risk_amount" json:"risk_amount"`
	Status     string  `db:"status" json:"status"`
}
