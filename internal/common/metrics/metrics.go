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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	VerificationSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_submissions_total",
			Help: "Evidence-backed requests submitted, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	VerificationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_decisions_total",
			Help: "Administrator decisions, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	VerificationDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verification_decision_duration_seconds",
			Help:    "Duration of the decision transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SubscriptionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscription requests moved to EXPIRED by the sweep",
		},
	)

	EligibilityCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_eligibility_cache_lookups_total",
			Help: "Publisher eligibility cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notification deliveries, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notification events dropped because the queue was full or closed",
		},
	)

	PayoutsSimulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_simulated_total",
			Help: "Simulated seller payouts, by payment channel",
		},
		[]string{"channel"},
	)
)
