// Package metrics exposes prometheus collectors for the job engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelforge_jobs_started_total",
			Help: "Total number of reel jobs created",
		},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelforge_jobs_finished_total",
			Help: "Total number of reel jobs reaching a terminal status",
		},
		[]string{"outcome"}, // completed, failed, cancelled
	)

	MomentsDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelforge_moments_detected_total",
			Help: "Total number of moments appended to jobs, by processing step",
		},
		[]string{"step"},
	)

	ComputeHealthProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelforge_compute_health_probes_total",
			Help: "Health gate probes against the compute service, by verdict",
		},
		[]string{"status"}, // available, sleeping, error
	)

	JobDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelforge_job_duration_seconds",
			Help:    "Wall-clock duration of reel jobs from start to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		},
	)
)

// Register exists for explicit initialization; collectors self-register via
// promauto.
func Register() {}
