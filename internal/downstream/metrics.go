package downstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "downstream",
			Name:      "requests_total",
			Help:      "Calls to the remote API by outcome.",
		},
		[]string{"service", "method", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "console",
			Subsystem: "downstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the remote API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)
)

// outcome is the status code, or the transport error name.
func observe(service, method, outcome string, d time.Duration) {
	requestsTotal.WithLabelValues(service, method, outcome).Inc()
	requestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}
