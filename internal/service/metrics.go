package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filelinker_deliveries_total",
		Help: "Delivery attempts by resolved kind and outcome.",
	}, []string{"kind", "outcome"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filelinker_uploads_total",
		Help: "Archived admin uploads by mode (single, batch).",
	}, []string{"mode"})

	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filelinker_deletions_total",
		Help: "Delivered message deletions by result.",
	}, []string{"result"})

	codeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinker_code_retries_total",
		Help: "Share codes regenerated after a collision.",
	})
)

var deletionSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "filelinker_deletion_sweep_duration_seconds",
	Help:    "Duration of one pending deletion sweep.",
	Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
})
