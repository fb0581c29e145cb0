package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exporter_jobs_total",
		Help: "Export jobs by playback factor and result status",
	}, []string{"playback_factor", "status"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exporter_stage_duration_seconds",
		Help:    "Duration of successful ffmpeg stages",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 16),
	}, []string{"stage"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exporter_queue_depth",
		Help: "Export jobs waiting for a worker",
	})

	cleanupRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exporter_cleanup_removed_total",
		Help: "Files removed by the cleanup worker",
	}, []string{"kind"})
)
