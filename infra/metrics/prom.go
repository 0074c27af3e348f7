package metrics

import (
	coremetrics "github.com/fleetsense/fleettrack/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records telemetry and detection events in Prometheus metrics.
type PromSink struct {
	samples   *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	runs      prometheus.Counter
	runTime   prometheus.Histogram
}

// NewPromSink registers the sink's metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	samples := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_samples_total",
		Help: "Total number of ingested location samples",
	}, []string{"vehicle_id", "component"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anomaly_events_total",
		Help: "Total number of persisted anomalies",
	}, []string{"type", "severity"})
	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "detection_passes_total",
		Help: "Total number of batch detection passes",
	})
	runTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "detection_pass_duration_seconds",
		Help:    "Wall time of one batch detection pass",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(samples); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			samples = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(anomalies); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			anomalies = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runTime = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{samples: samples, anomalies: anomalies, runs: runs, runTime: runTime}, nil
}

// RecordSample increments the sample counter.
func (s *PromSink) RecordSample(ev coremetrics.SampleEvent) error {
	s.samples.WithLabelValues(ev.Sample.VehicleID, ev.Component).Inc()
	return nil
}

// RecordAnomaly increments the anomaly counter.
func (s *PromSink) RecordAnomaly(ev coremetrics.AnomalyEvent) error {
	s.anomalies.WithLabelValues(ev.Anomaly.Type.String(), ev.Anomaly.Severity.String()).Inc()
	return nil
}

// RecordDetectionRun counts the pass and observes its duration.
func (s *PromSink) RecordDetectionRun(ev coremetrics.DetectionRunEvent) error {
	s.runs.Inc()
	s.runTime.Observe(ev.Duration.Seconds())
	return nil
}
