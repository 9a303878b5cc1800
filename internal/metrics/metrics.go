// Package metrics defines the Prometheus instrumentation for the design
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "printforge"

// Background job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time distribution",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type"},
	)

	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Total number of job retry attempts",
		},
		[]string{"type"},
	)
)

// Business metrics
var (
	DesignsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "designs_created_total",
			Help:      "Total number of designs created",
		},
		[]string{"product_type"},
	)

	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Total number of design renders",
		},
		[]string{"status"}, // "published" or "failed"
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Total number of design creations rejected for quota",
		},
	)
)
