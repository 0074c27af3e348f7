// Package events defines the domain events emitted on the event bus.
//
// Available event types:
//   - SampleEvent: telemetry sample ingested
//   - AnomalyEvent: anomaly persisted by the detector
//   - MissionEvent: mission state transition
package events
