// Package metrics holds the Prometheus collectors for facescan.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeServiceError = "service_error"
	OutcomeTransport    = "transport_error"
	OutcomeMalformed    = "malformed_response"
	OutcomeInvalidImage = "invalid_image"
	OutcomeCaptureError = "capture_error"
	OutcomeAbandoned    = "abandoned"
)

var (
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facescan",
			Subsystem: "scan",
			Name:      "attempts_total",
			Help:      "Scan attempts by outcome",
		},
		[]string{"outcome"},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "facescan",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of scan attempts from start to settled result",
			Buckets:   prometheus.DefBuckets,
		},
	)

	segmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facescan",
			Subsystem: "segment",
			Name:      "request_duration_seconds",
			Help:      "Duration of segmentation service requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	cameraActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "facescan",
			Subsystem: "camera",
			Name:      "active",
			Help:      "1 while a capture handle is live",
		},
	)
)

func init() {
	prometheus.MustRegister(scansTotal, scanDuration, segmentDuration, cameraActive)
}

// ObserveScan records a settled scan attempt.
func ObserveScan(outcome string, d time.Duration) {
	scansTotal.WithLabelValues(outcome).Inc()
	scanDuration.Observe(d.Seconds())
}

// ObserveSegment records one segmentation request.
func ObserveSegment(outcome string, d time.Duration) {
	segmentDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetCameraActive updates the camera gauge.
func SetCameraActive(active bool) {
	if active {
		cameraActive.Set(1)
		return
	}
	cameraActive.Set(0)
}
