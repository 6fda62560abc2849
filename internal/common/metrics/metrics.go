// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Model status label values.
const (
	ModelStatusSuccess     = "success"
	ModelStatusPlaceholder = "placeholder"
	ModelStatusError       = "error"
)

var (
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Total number of risk assessments produced",
		},
		[]string{"tier", "model"},
	)

	AssessmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessment_failures_total",
			Help: "Total number of scoring requests that produced no assessment",
		},
		[]string{"error_code"},
	)

	AssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_assessment_duration_seconds",
			Help:    "Duration of encode, infer and classify in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	ModelStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_model_status",
			Help: "1 for the status reported by the model provider, 0 otherwise",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

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
)

// SetModelStatus raises the gauge for status and lowers the others.
func SetModelStatus(status string) {
	for _, s := range []string{ModelStatusSuccess, ModelStatusPlaceholder, ModelStatusError} {
		v := 0.0
		if s == status {
			v = 1
		}
		ModelStatus.WithLabelValues(s).Set(v)
	}
}
