package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "headcount",
		Name:      "active_workers",
		Help:      "Number of currently running device workers",
	})

	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "headcount",
		Name:      "frames_processed_total",
		Help:      "Total number of capture units processed",
	}, []string{"kind"})

	CountsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "headcount",
		Name:      "counts_recorded_total",
		Help:      "Total number of aggregate count readings recorded",
	}, []string{"kind"})

	CaptureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "headcount",
		Name:      "capture_errors_total",
		Help:      "Total number of transient capture errors",
	}, []string{"kind"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "headcount",
		Name:      "inference_duration_seconds",
		Help:      "Per-frame inference latency reported by the collaborator",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "headcount",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "headcount",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
