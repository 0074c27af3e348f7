package metrics

import coremetrics "github.com/fleetsense/fleettrack/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSample forwards the sample to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordSample(ev coremetrics.SampleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSample(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAnomaly forwards the anomaly to all sinks.
func (m *MultiSink) RecordAnomaly(ev coremetrics.AnomalyEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAnomaly(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordDetectionRun forwards the pass summary to all sinks.
func (m *MultiSink) RecordDetectionRun(ev coremetrics.DetectionRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDetectionRun(ev); err != nil {
			return err
		}
	}
	return nil
}
