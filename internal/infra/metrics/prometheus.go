package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framesift_jobs_processed_total",
		Help: "Total number of sampling jobs processed, by status",
	}, []string{"status"})

	JobStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framesift_job_stage_duration_seconds",
		Help:    "Duration of each stage of the sampling pipeline",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framesift_frames_sampled_total",
		Help: "Total frame candidates across all jobs, by gate outcome",
	}, []string{"result"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framesift_active_workers",
		Help: "Number of workers currently running a sampling job",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framesift_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)
