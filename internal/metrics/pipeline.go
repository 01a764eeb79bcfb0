package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysisLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "analysis_latency_seconds",
			Namespace: BopstackNamespace,
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			Help:      "The latency of a full rig analysis in seconds, fetch included.",
		},
		[]string{"rig"},
	)

	EventsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "events_extracted_total",
			Namespace: BopstackNamespace,
			Help:      "The total number of valve events extracted.",
		},
		[]string{"rig"},
	)

	CyclesReconstructedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "cycles_reconstructed_total",
			Namespace: BopstackNamespace,
			Help:      "The total number of pressure cycles reconstructed.",
		},
		[]string{"rig"},
	)

	PublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "publish_errors_total",
			Namespace: BopstackNamespace,
			Help:      "The total number of records that failed to publish.",
		},
		[]string{"topic"},
	)
)
