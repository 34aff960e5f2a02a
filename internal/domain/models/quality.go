package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// QualityKind classifies a data quality event.
type QualityKind string

const (
	KindGap           QualityKind = "gap"
	KindOutlier       QualityKind = "outlier"
	KindIntegrityFail QualityKind = "integrity_fail"
)

// Severity of a quality event.
type Severity string

const (
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// QualityEvent is an append-only audit record. Time is nil when the event is
// not tied to a bar (e.g. a missing FX rate).
type QualityEvent struct {
	ID        int64          `db:"id" json:"id"`
	Symbol    string         `db:"symbol" json:"symbol"`
	Timeframe Timeframe      `db:"tf" json:"tf"`
	Time      *time.Time     `db:"time" json:"time,omitempty"`
	Kind      QualityKind    `db:"event_type" json:"event_type"`
	Severity  Severity       `db:"severity" json:"severity"`
	Details   QualityDetails `db:"details" json:"details"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// QualityDetails is the JSON payload of a QualityEvent. Build it through one
// of the constructors below so every kind carries its required fields.
type QualityDetails struct {
	Message  string     `json:"message,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	GapStart *time.Time `json:"gap_start,omitempty"`
	GapEnd   *time.Time `json:"gap_end,omitempty"`
	GapMs    *int64     `json:"gap_ms,omitempty"`
	Range    *float64   `json:"range,omitempty"`
	ATR      *float64   `json:"atr,omitempty"`
}

// MessageDetails is used for fetch and storage failures.
func MessageDetails(msg string) QualityDetails { return QualityDetails{Message: msg} }

// GapFillDetails describes a missing range that could not be fetched.
func GapFillDetails(msg string, start, end time.Time) QualityDetails {
	if msg == "" {
		msg = "Gap fill fetch returned empty/error"
	}
	s, e := start.UTC(), end.UTC()
	return QualityDetails{Message: msg, GapStart: &s, GapEnd: &e}
}

// IntegrityDetails is used for OHLC sanity failures.
func IntegrityDetails(reason string) QualityDetails { return QualityDetails{Reason: reason} }

// GapDetails records the observed spacing between two adjacent bars.
func GapDetails(gap time.Duration) QualityDetails {
	ms := gap.Milliseconds()
	return QualityDetails{GapMs: &ms}
}

// OutlierDetails records the bar range and the ATR it was compared against.
func OutlierDetails(rng, atr float64) QualityDetails {
	return QualityDetails{Range: &rng, ATR: &atr}
}

// Value implements driver.Valuer.
func (d QualityDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *QualityDetails) Scan(src interface{}) error {
	return scanJSON(src, d)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json source %T", src)
	}
}
