package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haishin",
			Name:      "sends_total",
			Help:      "Total number of dispatched messages by outcome",
		},
		[]string{"outcome"},
	)

	// BatchDuration observes wall time of whole batches, recorded by the
	// batch service when a job finishes.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "haishin",
			Name:      "batch_duration_seconds",
			Help:      "Duration of complete dispatch batches in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
	)
)
