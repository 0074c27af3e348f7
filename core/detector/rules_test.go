package detector

import (
	"testing"
	"time"

	"github.com/fleetsense/fleettrack/core/model"
)

func defaultConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

func parisMission() model.Mission {
	return model.Mission{
		ID:        "m1",
		VehicleID: "v1",
		Start:     model.GeoPoint{Lat: 48.8566, Lon: 2.3522},
		End:       model.GeoPoint{Lat: 48.9000, Lon: 2.4000},
	}
}

func TestCheckRouteDeviation(t *testing.T) {
	cfg := defaultConfig()
	m := parisMission()

	if dr := cfg.CheckRouteDeviation(m, 49.0, 2.0); dr == nil {
		t.Fatal("far from both anchors must flag a deviation")
	} else {
		if dr.Type != model.AnomalyRouteDeviation || dr.Severity != model.SeverityMedium {
			t.Fatalf("unexpected draft %+v", dr)
		}
		if dr.Lat == nil || *dr.Lat != 49.0 {
			t.Fatal("draft missing position context")
		}
	}

	if dr := cfg.CheckRouteDeviation(m, m.Start.Lat, m.Start.Lon); dr != nil {
		t.Fatalf("at mission start must not flag, got %+v", dr)
	}
	if dr := cfg.CheckRouteDeviation(m, m.End.Lat, m.End.Lon); dr != nil {
		t.Fatalf("at mission end must not flag, got %+v", dr)
	}
}

func TestCheckSpeeding(t *testing.T) {
	cfg := defaultConfig()
	cases := []struct {
		speed   float64
		want    bool
		wantSev model.Severity
	}{
		{100, true, model.SeverityMedium},
		{130, true, model.SeverityHigh}, // 130 > 1.5*80
		{70, false, 0},
		{80, false, 0}, // at the limit is not speeding
	}
	for _, c := range cases {
		dr := cfg.CheckSpeeding(c.speed)
		if (dr != nil) != c.want {
			t.Errorf("speed %v: verdict %v, want %v", c.speed, dr != nil, c.want)
			continue
		}
		if dr != nil && dr.Severity != c.wantSev {
			t.Errorf("speed %v: severity %s, want %s", c.speed, dr.Severity, c.wantSev)
		}
	}
}

func TestCheckIdle(t *testing.T) {
	cfg := defaultConfig()
	now := time.Now()
	same := []model.LocationSample{
		{Lat: 48.8566, Lon: 2.3522, Timestamp: now},
		{Lat: 48.8566, Lon: 2.3522, Timestamp: now.Add(-30 * time.Second)},
	}
	if dr := cfg.CheckIdle(same); dr == nil || dr.Type != model.AnomalyIdle {
		t.Fatalf("stationary samples must flag idle, got %+v", dr)
	}

	moved := []model.LocationSample{
		{Lat: 48.8566, Lon: 2.3522, Timestamp: now},
		{Lat: 48.90, Lon: 2.35, Timestamp: now.Add(-10 * time.Minute)}, // ~5 km away
	}
	if dr := cfg.CheckIdle(moved); dr != nil {
		t.Fatalf("moving vehicle must not flag idle, got %+v", dr)
	}

	if dr := cfg.CheckIdle(same[:1]); dr != nil {
		t.Fatal("single sample must yield no verdict")
	}
	if dr := cfg.CheckIdle(nil); dr != nil {
		t.Fatal("no samples must yield no verdict")
	}
}

func TestCheckScheduleDelay(t *testing.T) {
	cfg := defaultConfig()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := parisMission()
	m.Status = model.MissionPending
	m.ScheduledStart = now.Add(-90 * time.Minute)
	if dr := cfg.CheckScheduleDelay(m, now); dr == nil || dr.Severity != model.SeverityHigh {
		t.Fatalf("90 min late start must be high severity, got %+v", dr)
	} else if dr.Description != "Mission delayed by 90 minutes" {
		t.Fatalf("unexpected description %q", dr.Description)
	}

	m.ScheduledStart = now.Add(-10 * time.Minute)
	if dr := cfg.CheckScheduleDelay(m, now); dr == nil || dr.Severity != model.SeverityMedium {
		t.Fatalf("10 min late start must be medium severity, got %+v", dr)
	}

	m.ScheduledStart = now.Add(time.Hour)
	if dr := cfg.CheckScheduleDelay(m, now); dr != nil {
		t.Fatalf("future start must not flag, got %+v", dr)
	}

	m.Status = model.MissionInProgress
	m.ScheduledEnd = now.Add(-121 * time.Minute)
	if dr := cfg.CheckScheduleDelay(m, now); dr == nil || dr.Severity != model.SeverityHigh {
		t.Fatalf("121 min overdue must be high severity, got %+v", dr)
	} else if dr.Description != "Mission overdue by 121 minutes" {
		t.Fatalf("unexpected description %q", dr.Description)
	}

	m.ScheduledEnd = now.Add(-30 * time.Minute)
	if dr := cfg.CheckScheduleDelay(m, now); dr == nil || dr.Severity != model.SeverityMedium {
		t.Fatalf("30 min overdue must be medium severity, got %+v", dr)
	}

	m.Status = model.MissionCompleted
	m.ScheduledEnd = now.Add(-10 * time.Hour)
	if dr := cfg.CheckScheduleDelay(m, now); dr != nil {
		t.Fatalf("completed mission must not flag, got %+v", dr)
	}
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	cfg.HighSpeedFactor = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("factor below 1 must be rejected")
	}
	cfg = defaultConfig()
	cfg.RunRoles = []string{"root"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown role must be rejected")
	}
}

func TestRoleAllowed(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.RoleAllowed(model.RoleAdmin) || !cfg.RoleAllowed(model.RoleManager) {
		t.Fatal("admin and manager must be allowed by default")
	}
	if cfg.RoleAllowed(model.RoleOperator) {
		t.Fatal("operator must not be allowed by default")
	}
}
