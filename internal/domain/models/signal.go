package models

import "time"

// Side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// EntryType of a signal.
type EntryType string

const (
	EntryMarket EntryType = "market"
	EntryStop   EntryType = "stop"
)

// IntentStatusNew is the only status this pipeline writes; later transitions
// belong to execution tooling.
const IntentStatusNew = "new"

// Signal is immutable once created.
type Signal struct {
	ID         string    `db:"id" json:"id"`
	Symbol     string    `db:"symbol" json:"symbol"`
	Timeframe  Timeframe `db:"tf" json:"tf"`
	Side       Side      `db:"side" json:"side"`
	Setup      string    `db:"setup" json:"setup"`
	EntryType  EntryType `db:"entry_type" json:"entry_type"`
	EntryPrice float64   `db:"entry_price" json:"entry_price"`
	StopPrice  float64   `db:"stop_price" json:"stop_price"`
	TP1Price   float64   `db:"tp1_price" json:"tp1_price"`
	RRExpected float64   `db:"rr_expected" json:"rr_expected"`
	Confidence float64   `db:"confidence" json:"confidence"`
	BarTime    time.Time `db:"bar_time" json:"bar_time"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TradeIntent is the sized suggestion attached to a signal.
type TradeIntent struct {
	ID             string    `db:"id" json:"id"`
	SignalID       string    `db:"signal_id" json:"signal_id"`
	Status         string    `db:"status" json:"status"`
	SuggestedLots  float64   `db:"suggested_lots" json:"suggested_lots"`
	SuggestedEntry float64   `db:"suggested_entry" json:"suggested_entry"`
	SuggestedStop  float64   `db:"suggested_stop" json:"suggested_stop"`
	SuggestedTP1   float64   `db:"suggested_tp1" json:"suggested_tp1"`
	RiskAmount     float64   `db:"risk_amount" json:"risk_amount"`
	StopPips       float64   `db:"stop_pips" json:"stop_pips"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IntentEvent is published to the intents topic after an intent is stored.
type IntentEvent struct {
	EventType string       `json:"event_type"`
	EventID   string       `json:"event_id"`
	DedupeKey string       `json:"dedupe_key"`
	SignalID  string       `json:"signal_id"`
	IntentID  string       `json:"intent_id"`
	Payload   AlertPayload `json:"payload"`
}
