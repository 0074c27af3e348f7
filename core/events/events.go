package events

import "github.com/fleetsense/fleettrack/core/model"

// SampleEvent is published when a telemetry sample is ingested.
type SampleEvent struct {
	Sample model.LocationSample
}

// AnomalyEvent is published when the detector persists a new anomaly.
type AnomalyEvent struct {
	Anomaly model.Anomaly
}

// MissionEvent is published on every mission state transition.
type MissionEvent struct {
	Mission    model.Mission
	Transition string
}
