// ABOUTME: Prometheus metrics for reconciler runs
// ABOUTME: Labels carry provider names and outcomes only
package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kith",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Reconciler runs by outcome (completed, failed, paused, declined).",
		},
		[]string{"provider", "outcome"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kith",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Remote records processed by action.",
		},
		[]string{"provider", "action"},
	)

	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kith",
			Subsystem: "sync",
			Name:      "conflicts_created_total",
			Help:      "Pending conflicts created.",
		},
		[]string{"provider"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kith",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of claimed runs.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
