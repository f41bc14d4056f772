// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuditJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_jobs_completed_total",
			Help: "Total number of audit jobs that reached a terminal state",
		},
		[]string{"status"},
	)

	AuditJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_job_duration_seconds",
			Help:    "Wall-clock duration of audit job runs in seconds",
			Buckets: []float64{5, 15, 30, 60, 90, 120, 180, 300},
		},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_provider_calls_total",
			Help: "Total provider calls by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_provider_call_duration_seconds",
			Help:    "Duration of individual provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform"},
	)

	LeadsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_leads_captured_total",
			Help: "Total leads captured through the report unlock gate",
		},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_rate_limit_rejections_total",
			Help: "Requests rejected by the sliding-window rate limiter",
		},
		[]string{"scope"},
	)
)
