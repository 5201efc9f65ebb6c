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

	// Outcome is "applied" or the error code the executor returned.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Status transitions attempted, by edge and outcome",
		},
		[]string{"from", "to", "outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_notifications_sent_total",
			Help: "Notifications delivered, by channel",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_notifications_failed_total",
			Help: "Notifications dead-lettered after exhausting retries, by channel",
		},
		[]string{"channel"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_uploads_total",
			Help: "Onboarding document uploads, by document type and outcome",
		},
		[]string{"document_type", "outcome"},
	)

	AuditIndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_audit_index_failures_total",
			Help: "State change events that could not be written to the search index",
		},
	)
)
