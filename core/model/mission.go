package model

import (
	"fmt"
	"time"
)

// MissionStatus defines the lifecycle state of a mission.
type MissionStatus int

const (
	MissionPending MissionStatus = iota
	MissionInProgress
	MissionCompleted
	MissionCancelled
)

// String returns a human-readable representation of the status.
func (s MissionStatus) String() string {
	switch s {
	case MissionPending:
		return "pending"
	case MissionInProgress:
		return "in_progress"
	case MissionCompleted:
		return "completed"
	case MissionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s MissionStatus) Terminal() bool {
	return s == MissionCompleted || s == MissionCancelled
}

// ParseMissionStatus converts a wire string into a MissionStatus.
func ParseMissionStatus(s string) (MissionStatus, error) {
	switch s {
	case "pending":
		return MissionPending, nil
	case "in_progress":
		return MissionInProgress, nil
	case "completed":
		return MissionCompleted, nil
	case "cancelled":
		return MissionCancelled, nil
	default:
		return 0, fmt.Errorf("invalid mission status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s MissionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MissionStatus) UnmarshalText(b []byte) error {
	v, err := ParseMissionStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Priority orders missions by urgency.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// ParsePriority converts a wire string into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return 0, fmt.Errorf("invalid priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Mission is a scheduled transport task assigning one operator and one
// vehicle to travel between two geo-points in a time window.
type Mission struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      MissionStatus `json:"status"`
	Priority    Priority      `json:"priority"`

	Start        GeoPoint `json:"start"`
	StartAddress string   `json:"start_address,omitempty"`
	End          GeoPoint `json:"end"`
	EndAddress   string   `json:"end_address,omitempty"`

	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`

	OperatorID  string `json:"operator_id"`
	VehicleID   string `json:"vehicle_id"`
	CreatedByID string `json:"created_by_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
