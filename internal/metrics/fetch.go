package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "fetch_attempts_total",
			Namespace: BopstackNamespace,
			Help:      "The total number of series fetch attempts, retries included.",
		},
		[]string{"result"},
	)

	FetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "fetch_failures_total",
		Namespace: BopstackNamespace,
		Help:      "The total number of tags whose fetch gave up after retrying.",
	})

	FetchSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "fetch_samples_total",
		Namespace: BopstackNamespace,
		Help:      "The total number of raw samples fetched.",
	})
)
