package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseVehicleStatus(t *testing.T) {
	for _, s := range []VehicleStatus{VehicleAvailable, VehicleInUse, VehicleMaintenance, VehicleOutOfService} {
		got, err := ParseVehicleStatus(s.String())
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		if got != s {
			t.Errorf("round trip %s got %s", s, got)
		}
	}
	if _, err := ParseVehicleStatus("parked"); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestParseMissionStatus(t *testing.T) {
	for _, s := range []MissionStatus{MissionPending, MissionInProgress, MissionCompleted, MissionCancelled} {
		got, err := ParseMissionStatus(s.String())
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		if got != s {
			t.Errorf("round trip %s got %s", s, got)
		}
	}
	if _, err := ParseMissionStatus(""); err == nil {
		t.Fatal("expected error for empty status")
	}
}

func TestMissionStatusTerminal(t *testing.T) {
	if MissionPending.Terminal() || MissionInProgress.Terminal() {
		t.Fatal("active statuses must not be terminal")
	}
	if !MissionCompleted.Terminal() || !MissionCancelled.Terminal() {
		t.Fatal("completed and cancelled must be terminal")
	}
}

func TestAnomalyJSONBoundary(t *testing.T) {
	a := Anomaly{
		ID:          "a1",
		Type:        AnomalySpeeding,
		Severity:    SeverityHigh,
		Description: "speed 130.0 km/h (limit: 80.0 km/h)",
		DetectedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		VehicleID:   "v1",
	}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Anomaly
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Type != AnomalySpeeding || back.Severity != SeverityHigh {
		t.Fatalf("enum round trip lost values: %+v", back)
	}

	// Invalid enum values are rejected at deserialization.
	var bad Anomaly
	if err := json.Unmarshal([]byte(`{"type":"teleport","severity":"low"}`), &bad); err == nil {
		t.Fatal("expected error for invalid anomaly type")
	}
}

func TestVehicleUpdatePosition(t *testing.T) {
	v := Vehicle{ID: "v1", Status: VehicleAvailable}
	if v.Position != nil {
		t.Fatal("position must be nil before first telemetry")
	}
	at := time.Now()
	v.UpdatePosition(48.8566, 2.3522, at)
	if v.Position == nil || v.Position.Lat != 48.8566 {
		t.Fatalf("position not updated: %+v", v.Position)
	}
	if !v.LastSeenAt.Equal(at) {
		t.Fatal("last seen not updated")
	}
}

func TestAnomalyResolve(t *testing.T) {
	a := Anomaly{ID: "a1", Type: AnomalyIdle}
	at := time.Now()
	a.Resolve("driver on lunch break", at)
	if !a.Resolved || a.ResolvedAt == nil || a.ResolutionNotes == "" {
		t.Fatalf("resolution state not recorded: %+v", a)
	}
}
