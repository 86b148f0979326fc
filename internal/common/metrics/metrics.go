// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	MatchStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_status_responses_total",
			Help: "Match status answers returned to callers, by status",
		},
		[]string{"status"},
	)

	MatchReadFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_read_fallbacks_total",
			Help: "Primary match reads that failed and went through the scoped reader",
		},
	)

	TopUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_topups_total",
			Help: "Background top-up requests, by outcome",
		},
		[]string{"outcome"},
	)

	PipelineCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_calls_total",
			Help: "Calls to the remote investor pipeline",
		},
		[]string{"operation", "outcome"},
	)

	PipelineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_call_duration_seconds",
			Help:    "Latency of remote investor pipeline calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	CoalescerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalescer_requests_total",
			Help: "Coalesced fetches, by resource and outcome (hit, joined, loaded, failed)",
		},
		[]string{"resource", "outcome"},
	)

	ReadinessCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readiness_cache_lookups_total",
			Help: "Readiness snapshot cache lookups, by result",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "API request latency",
		},
		[]string{"route", "method", "status"},
	)
)
