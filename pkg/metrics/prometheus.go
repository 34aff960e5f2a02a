package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobRows     *prometheus.CounterVec
	jobCredits  *prometheus.CounterVec
	quality     *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	provider    *prometheus.HistogramVec
}

// Option configures New.
type Option func(*options)

type options struct {
	reg prometheus.Registerer
}

// WithRegisterer registers the collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// New creates the recorder. Call it once per registry.
func New(opts ...Option) *Recorder {
	o := &options{reg: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(o)
	}
	f := promauto.With(o.reg)

	return &Recorder{
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpipe_job_runs_total",
				Help: "Job runs by outcome (ok, error, skipped)",
			},
			[]string{"job", "outcome"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpipe_job_duration_seconds",
				Help:    "Job wall time",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"job"},
		),
		jobRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpipe_job_rows_total",
				Help: "Rows processed by jobs",
			},
			[]string{"job"},
		),
		jobCredits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpipe_provider_credits_total",
				Help: "Provider credits spent by jobs",
			},
			[]string{"job"},
		),
		quality: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpipe_quality_events_total",
				Help: "Data quality events by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpipe_notification_deliveries_total",
				Help: "Notification delivery attempts by channel and status",
			},
			[]string{"channel", "status"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpipe_strategy_decisions_total",
				Help: "Strategy evaluations by outcome reason",
			},
			[]string{"reason"},
		),
		provider: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpipe_provider_request_seconds",
				Help:    "Quote provider request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "result"},
		),
	}
}

func (r *Recorder) RecordJobRun(job, outcome string, seconds float64) {
	r.jobRuns.WithLabelValues(job, outcome).Inc()
	r.jobDuration.WithLabelValues(job).Observe(seconds)
}

func (r *Recorder) RecordJobRows(job string, rows, credits int) {
	r.jobRows.WithLabelValues(job).Add(float64(rows))
	r.jobCredits.WithLabelValues(job).Add(float64(credits))
}

func (r *Recorder) RecordQualityEvent(kind, severity string) {
	r.quality.WithLabelValues(kind, severity).Inc()
}

func (r *Recorder) RecordDelivery(channel, status string) {
	r.deliveries.WithLabelValues(channel, status).Inc()
}

func (r *Recorder) RecordDecision(reason string) {
	r.decisions.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordProviderRequest(endpoint, result string, seconds float64) {
	r.provider.WithLabelValues(endpoint, result).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordJobRun(string, string, float64) {}
func (Nop) RecordJobRows(string, int, int) {}
func (Nop) RecordQualityEvent(string, string) {}
func (Nop) RecordDelivery(string, string) {}
func (Nop) RecordDecision(string) {}
func (Nop) RecordProviderRequest(string, string, float64) {}
