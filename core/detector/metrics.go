package detector

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	anomaliesDetected *prometheus.CounterVec
	missionEvalErrors prometheus.Counter
	detectionDuration prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram) {
	det := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Number of anomalies persisted by the detector",
		},
		[]string{"type", "severity"},
	)
	evalErr := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_mission_errors_total",
			Help: "Number of missions skipped during batch detection due to errors",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_run_duration_seconds",
			Help:    "Duration of full-fleet detection passes",
			Buckets: prometheus.DefBuckets,
		},
	)
	return det, evalErr, dur
}

func init() {
	anomaliesDetected, missionEvalErrors, detectionDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers detector metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(anomaliesDetected, missionEvalErrors, detectionDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	anomaliesDetected, missionEvalErrors, detectionDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
