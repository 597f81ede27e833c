package metrics

import "github.com/prometheus/client_golang/prometheus"

// Run pipeline Prometheus metrics.
var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "runs_total",
			Help:      "Total number of finished runs by terminal state",
		},
		[]string{"state", "partial"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "painradar",
			Name:      "run_duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		},
		[]string{"state"},
	)

	ExtractionRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "extraction_repairs_total",
			Help:      "Extraction repair attempts by outcome",
		},
		[]string{"outcome"}, // "repaired" / "failed" / "provider_error"
	)

	CorpusSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "painradar",
			Name:      "corpus_size",
			Help:      "Records in the aggregated corpus",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 200},
		},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "painradar",
			Name:      "events_dropped_total",
			Help:      "Progress events dropped because the consumer was slow",
		},
	)
)

var runMetricsRegistered bool

// RegisterRunMetrics registers run pipeline metrics. Must be called once from main.
func RegisterRunMetrics() {
	if runMetricsRegistered {
		return
	}
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(ExtractionRepairsTotal)
	prometheus.MustRegister(CorpusSize)
	prometheus.MustRegister(EventsDroppedTotal)
	runMetricsRegistered = true
}

// RegisterAll registers every painradar metric family.
func RegisterAll() {
	RegisterSourceMetrics()
	RegisterLLMMetrics()
	RegisterRunMetrics()
}
