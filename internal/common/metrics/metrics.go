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

	PayloadBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_payload_builds_total",
			Help: "Contact payload builds by photo source and outcome",
		},
		[]string{"source", "outcome"},
	)

	PhotoFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_fetches_total",
			Help: "Remote photo fetches by result",
		},
		[]string{"result"},
	)

	PhotoNormalizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_normalize_duration_seconds",
			Help:    "Time spent decoding, scaling and encoding a photo",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	StaleBuildsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "form_stale_builds_dropped_total",
			Help: "Asynchronous builds discarded because a newer input superseded them",
		},
	)

	QRCodesRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrcode_renders_total",
			Help: "QR code renders by output format and outcome",
		},
		[]string{"format", "outcome"},
	)

	FormSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "form_sessions_active",
			Help: "Number of live form sessions",
		},
	)
)
