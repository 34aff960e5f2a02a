package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	TriggerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fxpipe",
			Subsystem: "trigger",
			Name:      "latency_seconds",
			Help:      "Latency of HTTP-triggered job runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 120},
		},
		[]string{"job"},
	)

	TriggerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxpipe",
			Subsystem: "trigger",
			Name:      "errors_total",
			Help:      "Rejected or failed job triggers by reason",
		},
		[]string{"job", "reason"},
	)
)

// Register adds the trigger collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(TriggerLatency, TriggerErrors)
	})
}
