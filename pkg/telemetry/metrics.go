// Package telemetry exposes Prometheus collectors for pipelines, the
// analyzer and alerts.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_frames_total",
			Help: "Total number of frames captured",
		},
		[]string{"camera"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_frames_dropped_total",
			Help: "Frames replaced in the mailbox before the worker picked them up",
		},
		[]string{"camera"},
	)

	CaptureErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_capture_errors_total",
			Help: "Total number of failed frame reads",
		},
		[]string{"camera"},
	)

	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_detector_errors_total",
			Help: "Total number of failed detector calls",
		},
		[]string{"camera", "detector"},
	)

	FrameLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_frame_latency_seconds",
			Help:    "Time from capture to evaluated state",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.4, 0.8, 1.6},
		},
		[]string{"camera"},
	)

	FPS = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_pipeline_fps",
			Help: "Smoothed processed frames per second",
		},
		[]string{"camera"},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_state_transitions_total",
			Help: "Published driver and hazard state changes",
		},
		[]string{"source", "state"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"kind"},
	)

	IngestConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_ingest_connections",
			Help: "Number of connected ingest clients",
		},
	)

	DashboardClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_dashboard_clients",
			Help: "Number of connected dashboard websocket clients",
		},
		[]string{"hub"},
	)
)

// ObserveFrame records one processed frame.
func ObserveFrame(camera string, latency time.Duration, fps float64) {
	FrameLatency.WithLabelValues(camera).Observe(latency.Seconds())
	FPS.WithLabelValues(camera).Set(fps)
}

// ObserveTransition records a published state change.
func ObserveTransition(source, state string) {
	StateTransitions.WithLabelValues(source, state).Inc()
}
