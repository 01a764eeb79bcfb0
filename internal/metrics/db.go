package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ScyllaDb = "scylladb"
	TSAPI    = "tsapi"
)

var (
	DbReadLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "db_read_latency_seconds",
			Namespace: BopstackNamespace,
			Buckets:   prometheus.DefBuckets,
			Help:      "The latency of series source read operations in seconds.",
		},
		[]string{"db", "query"},
	)
)
