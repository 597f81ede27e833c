package metrics

import "github.com/prometheus/client_golang/prometheus"

// Source adapter Prometheus metrics.
var (
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "source_requests_total",
			Help:      "Total number of source adapter fetches",
		},
		[]string{"source", "status"}, // status: ok or a failure kind
	)

	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "painradar",
			Name:      "source_request_duration_seconds",
			Help:      "Source adapter fetch duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"source"},
	)

	SourceRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "source_retries_total",
			Help:      "Total number of retried provider calls",
		},
		[]string{"source", "reason"},
	)

	SourceRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "source_records_total",
			Help:      "Total normalized records returned by source adapters",
		},
		[]string{"source"},
	)

	SourceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "source_cache_total",
			Help:      "Fetch cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var sourceMetricsRegistered bool

// RegisterSourceMetrics registers source adapter metrics. Must be called once from main.
func RegisterSourceMetrics() {
	if sourceMetricsRegistered {
		return
	}
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(SourceRetriesTotal)
	prometheus.MustRegister(SourceRecordsTotal)
	prometheus.MustRegister(SourceCacheTotal)
	sourceMetricsRegistered = true
}
