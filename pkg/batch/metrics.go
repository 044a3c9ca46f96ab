package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsSubmittedTotal counts jobs the service accepted
	jobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoapify_batch_jobs_submitted_total",
			Help: "Total number of batch jobs created",
		},
		[]string{"api"},
	)

	// submitFailuresTotal counts aborted submissions by reason (transport, status, protocol)
	submitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoapify_batch_submit_failures_total",
			Help: "Total number of failed batch job submissions",
		},
		[]string{"reason"},
	)

	// itemsSubmittedTotal counts inputs sent in accepted jobs
	itemsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoapify_batch_items_submitted_total",
			Help: "Total number of inputs sent in batch jobs",
		},
		[]string{"api"},
	)

	// pollsTotal counts job status polls by classification
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoapify_batch_polls_total",
			Help: "Total number of job status polls",
		},
		[]string{"status"},
	)

	// jobsInFlight is the number of jobs currently being polled
	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoapify_batch_jobs_in_flight",
			Help: "Number of batch jobs currently being polled",
		},
	)

	// collectDuration tracks wall time from first poll to last result
	collectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geoapify_batch_collect_duration_seconds",
			Help:    "Time to collect all results of a batch",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
)
