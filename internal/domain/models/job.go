package models

import "time"

// JobRun is the bookkeeping row for one job invocation.
type JobRun struct {
	ID            string     `db:"id" json:"id"`
	FunctionName  string     `db:"function_name" json:"function_name"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	RowsProcessed int        `db:"rows_processed" json:"rows_processed"`
	CreditsUsed   int        `db:"credits_used" json:"credits_used"`
	ErrorSummary  *string    `db:"error_summary" json:"error_summary,omitempty"`
}

// JobResult is what a job reports back to the runner. RequestsMade and
// MissingDetected are set only by the jobs that track them.
type JobResult struct {
	RowsProcessed   int
	CreditsUsed     int
	RequestsMade    *int
	MissingDetected *int
	Skipped         bool
	Reason          string
}

// SignalCursor is the JobState value under "last_signal:<symbol>".
type SignalCursor struct {
	LastBarTime time.Time `json:"last_bar_time"`
}

// CachedRate is the JobState value under "fx_rate:<pair>".
type CachedRate struct {
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fresh reports whether the rate is younger than ttl at now.
func (r CachedRate) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.FetchedAt) < ttl
}

func SignalCursorKey(symbol string) string { return "last_signal:" + symbol }

func RateKey(pair string) string { return "fx_rate:" + pair }
