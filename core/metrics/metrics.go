// Package metrics defines the observability sinks fed by the core services.
package metrics

import (
	"time"

	"github.com/fleetsense/fleettrack/core/model"
)

// SampleEvent captures one ingested telemetry sample.
type SampleEvent struct {
	Sample    model.LocationSample
	Component string
	Time      time.Time
}

// SampleRecorder records ingested telemetry samples.
type SampleRecorder interface {
	RecordSample(ev SampleEvent) error
}

// AnomalyEvent captures one persisted anomaly.
type AnomalyEvent struct {
	Anomaly   model.Anomaly
	Component string
	Time      time.Time
}

// AnomalyRecorder records detected anomalies.
type AnomalyRecorder interface {
	RecordAnomaly(ev AnomalyEvent) error
}

// DetectionRunEvent summarizes one batch detection pass.
type DetectionRunEvent struct {
	Missions  int
	Created   int
	Failed    int
	Duration  time.Duration
	Component string
	Time      time.Time
}

// DetectionRunRecorder records batch detection passes.
type DetectionRunRecorder interface {
	RecordDetectionRun(ev DetectionRunEvent) error
}

// Sink is the union implemented by full observability backends.
type Sink interface {
	SampleRecorder
	AnomalyRecorder
	DetectionRunRecorder
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSample(SampleEvent) error             { return nil }
func (NopSink) RecordAnomaly(AnomalyEvent) error           { return nil }
func (NopSink) RecordDetectionRun(DetectionRunEvent) error { return nil }
