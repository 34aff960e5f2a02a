package models

import (
	"time"

	"FxPipe/pkg/util"
)

// Timeframe is the sampling interval of a bar series.
type Timeframe string

const (
	H1 Timeframe = "H1"
	H4 Timeframe = "H4"
)

// Duration returns the bar spacing.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case H4:
		return 4 * time.Hour
	default:
		return time.Hour
	}
}

// Interval returns the provider interval string ("1h", "4h").
func (tf Timeframe) Interval() string {
	if tf == H4 {
		return "4h"
	}
	return "1h"
}

// Floor truncates t (UTC) to the timeframe boundary.
func (tf Timeframe) Floor(t time.Time) time.Time {
	return util.FloorTo(t, tf.Duration())
}

// LatestClosed returns the open time of the last fully closed bar at now.
func (tf Timeframe) LatestClosed(now time.Time) time.Time {
	return tf.Floor(now).Add(-tf.Duration())
}

func (tf Timeframe) Valid() bool { return tf == H1 || tf == H4 }

// Bar is one OHLC observation. Raw bars are keyed by (symbol, timeframe, time).
type Bar struct {
	Symbol     string    `db:"symbol" json:"symbol"`
	Timeframe  Timeframe `db:"tf" json:"tf"`
	Time       time.Time `db:"time" json:"time"`
	Open       float64   `db:"open" json:"open"`
	High       float64   `db:"high" json:"high"`
	Low        float64   `db:"low" json:"low"`
	Close      float64   `db:"close" json:"close"`
	Volume     *float64  `db:"volume" json:"volume,omitempty"`
	Source     string    `db:"source" json:"source"`
	IngestedAt time.Time `db:"ingested_at" json:"ingested_at"`
}

// CleanBar is a validated bar with its quality score.
type CleanBar struct {
	Bar
	QualityScore int       `db:"quality_score" json:"quality_score"`
	ValidatedAt  time.Time `db:"validated_at" json:"validated_at"`
}

// OHLCValid reports whether high and low bound open and close.
func (b Bar) OHLCValid() bool {
	return b.High >= b.Open && b.High >= b.Close && b.Low <= b.Open && b.Low <= b.Close && b.High >= b.Low
}
