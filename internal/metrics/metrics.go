package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutcomesTotal tracks void outcomes per target collection
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkvoid_outcomes_total",
			Help: "Total number of processed identifiers by outcome",
		},
		[]string{"target", "outcome"},
	)

	// RemoteCallsTotal tracks calls to the accounting API
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkvoid_remote_calls_total",
			Help: "Total number of remote API calls",
		},
		[]string{"operation", "status"},
	)

	// RemoteLatency tracks remote call latency
	RemoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkvoid_remote_latency_seconds",
			Help:    "Remote API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RunRemainingItems tracks identifiers left in the current run
	RunRemainingItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkvoid_run_remaining_items",
			Help: "Identifiers not yet processed in the current run",
		},
	)
)

// ObserveRemoteCall records one round trip. status 0 means the request never
// got a response.
func ObserveRemoteCall(operation string, status int, latency time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RemoteCallsTotal.WithLabelValues(operation, label).Inc()
	RemoteLatency.WithLabelValues(operation).Observe(latency.Seconds())
}
