package model

import (
	"fmt"
	"time"
)

// AnomalyType identifies the detection rule that produced an anomaly.
type AnomalyType int

const (
	AnomalyRouteDeviation AnomalyType = iota
	AnomalySpeeding
	AnomalyIdle
	AnomalyScheduleDelay
	// AnomalyOther covers manually entered records; the free-form label
	// travels in Anomaly.Label.
	AnomalyOther
)

// String returns a human-readable representation of the type.
func (t AnomalyType) String() string {
	switch t {
	case AnomalyRouteDeviation:
		return "route_deviation"
	case AnomalySpeeding:
		return "speeding"
	case AnomalyIdle:
		return "idle"
	case AnomalyScheduleDelay:
		return "schedule_delay"
	case AnomalyOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseAnomalyType converts a wire string into an AnomalyType.
func ParseAnomalyType(s string) (AnomalyType, error) {
	switch s {
	case "route_deviation":
		return AnomalyRouteDeviation, nil
	case "speeding":
		return AnomalySpeeding, nil
	case "idle":
		return AnomalyIdle, nil
	case "schedule_delay":
		return AnomalyScheduleDelay, nil
	case "other":
		return AnomalyOther, nil
	default:
		return 0, fmt.Errorf("invalid anomaly type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t AnomalyType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AnomalyType) UnmarshalText(b []byte) error {
	v, err := ParseAnomalyType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Severity is the ordinal classification attached to an anomaly.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a wire string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("invalid severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Anomaly is a detected deviation from expected operational behavior.
type Anomaly struct {
	ID          string      `json:"id"`
	Type        AnomalyType `json:"type"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	DetectedAt  time.Time   `json:"detected_at"`

	VehicleID  string `json:"vehicle_id"`
	MissionID  string `json:"mission_id,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`

	// Optional numeric context for specific anomaly types.
	FuelConsumed *float64 `json:"fuel_consumed,omitempty"`
	ExpectedFuel *float64 `json:"expected_fuel,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`

	Resolved        bool       `json:"resolved"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Resolve marks the anomaly handled. The record is otherwise immutable.
func (a *Anomaly) Resolve(notes string, at time.Time) {
	a.Resolved = true
	a.ResolutionNotes = notes
	a.ResolvedAt = &at
}
