package detector

import (
	"fmt"
	"time"

	"github.com/fleetsense/fleettrack/core/geo"
	"github.com/fleetsense/fleettrack/core/model"
)

// Draft is the verdict of one detection rule before persistence. Rules are
// pure: they never touch the store, so the caller decides what to commit.
type Draft struct {
	Type        model.AnomalyType
	Severity    model.Severity
	Description string

	// Optional position context for rules anchored at a coordinate.
	Lat *float64
	Lon *float64
}

// CheckRouteDeviation flags a vehicle farther than the threshold from both
// the mission start and end points. Proximity to either anchor counts as
// on-mission; this is a deliberately crude two-anchor heuristic, not a
// polyline corridor check.
func (c Config) CheckRouteDeviation(m model.Mission, lat, lon float64) *Draft {
	fromStart := geo.Distance(lat, lon, m.Start.Lat, m.Start.Lon)
	fromEnd := geo.Distance(lat, lon, m.End.Lat, m.End.Lon)
	if fromStart <= c.DeviationThresholdKm || fromEnd <= c.DeviationThresholdKm {
		return nil
	}
	return &Draft{
		Type:        model.AnomalyRouteDeviation,
		Severity:    model.SeverityMedium,
		Description: fmt.Sprintf("Vehicle deviated %.1fkm from start and %.1fkm from end", fromStart, fromEnd),
		Lat:         &lat,
		Lon:         &lon,
	}
}

// CheckSpeeding flags a speed above the configured limit. Severity is high
// above HighSpeedFactor times the limit, medium otherwise.
func (c Config) CheckSpeeding(speedKmh float64) *Draft {
	if speedKmh <= c.SpeedLimitKmh {
		return nil
	}
	sev := model.SeverityMedium
	if speedKmh > c.SpeedLimitKmh*c.HighSpeedFactor {
		sev = model.SeverityHigh
	}
	return &Draft{
		Type:        model.AnomalySpeeding,
		Severity:    sev,
		Description: fmt.Sprintf("Vehicle exceeded speed limit: %.1f km/h (limit: %.1f km/h)", speedKmh, c.SpeedLimitKmh),
	}
}

// CheckIdle flags a vehicle whose two most recent samples inside the
// trailing window moved less than IdleDistanceKm. Fewer than two samples
// yields no verdict.
func (c Config) CheckIdle(recent []model.LocationSample) *Draft {
	if len(recent) < 2 {
		return nil
	}
	d := geo.Distance(recent[0].Lat, recent[0].Lon, recent[1].Lat, recent[1].Lon)
	if d >= c.IdleDistanceKm {
		return nil
	}
	return &Draft{
		Type:        model.AnomalyIdle,
		Severity:    model.SeverityMedium,
		Description: fmt.Sprintf("Vehicle idle for more than %d minutes", c.IdleWindowMinutes),
	}
}

// CheckScheduleDelay flags a pending mission past its scheduled start or an
// in-progress mission past its scheduled end. Completed and cancelled
// missions never produce a verdict.
func (c Config) CheckScheduleDelay(m model.Mission, now time.Time) *Draft {
	switch m.Status {
	case model.MissionPending:
		if !m.ScheduledStart.Before(now) {
			return nil
		}
		minutes := now.Sub(m.ScheduledStart).Minutes()
		sev := model.SeverityMedium
		if minutes > float64(c.StartDelayHighMinutes) {
			sev = model.SeverityHigh
		}
		return &Draft{
			Type:        model.AnomalyScheduleDelay,
			Severity:    sev,
			Description: fmt.Sprintf("Mission delayed by %.0f minutes", minutes),
		}
	case model.MissionInProgress:
		if !m.ScheduledEnd.Before(now) {
			return nil
		}
		minutes := now.Sub(m.ScheduledEnd).Minutes()
		sev := model.SeverityMedium
		if minutes > float64(c.EndDelayHighMinutes) {
			sev = model.SeverityHigh
		}
		return &Draft{
			Type:        model.AnomalyScheduleDelay,
			Severity:    sev,
			Description: fmt.Sprintf("Mission overdue by %.0f minutes", minutes),
		}
	default:
		return nil
	}
}
