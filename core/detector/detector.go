package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetsense/fleettrack/core/events"
	"github.com/fleetsense/fleettrack/core/fault"
	"github.com/fleetsense/fleettrack/core/logger"
	coremetrics "github.com/fleetsense/fleettrack/core/metrics"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/core/store"
	"github.com/fleetsense/fleettrack/internal/eventbus"
)

// Detector evaluates detection rules against live mission telemetry and
// persists the resulting anomalies.
type Detector struct {
	cfg   Config
	store store.Store
	log   logger.Logger
	sink  coremetrics.Sink
	bus   eventbus.EventBus
	now   func() time.Time
}

// Report aggregates the outcome of one batch detection pass.
type Report struct {
	// Created is the number of anomalies persisted.
	Created int
	// Anomalies lists the persisted records.
	Anomalies []model.Anomaly
	// SkippedMissions counts missions dropped due to evaluation errors.
	SkippedMissions int
}

// New creates a Detector. sink and bus may be nil.
func New(cfg Config, st store.Store, log logger.Logger) (*Detector, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("detector: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}
	return &Detector{
		cfg:   cfg,
		store: st,
		log:   log,
		sink:  coremetrics.NopSink{},
		now:   time.Now,
	}, nil
}

// SetSink configures the observability sink.
func (d *Detector) SetSink(sink coremetrics.Sink) {
	if sink != nil {
		d.sink = sink
	}
}

// SetBus configures the event bus anomalies are announced on.
func (d *Detector) SetBus(bus eventbus.EventBus) { d.bus = bus }

// SetClock overrides the time source, used by tests.
func (d *Detector) SetClock(now func() time.Time) {
	if now != nil {
		d.now = now
	}
}

// CheckVehicle evaluates the position-based rules for one mission and
// vehicle without persisting anything. speedKmh may be nil when the
// receiver did not report a speed.
func (d *Detector) CheckVehicle(ctx context.Context, vehicleID, missionID string, lat, lon float64, speedKmh *float64) ([]Draft, error) {
	var drafts []Draft
	err := d.store.RunInTx(ctx, func(tx store.Tx) error {
		m, err := tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		since := d.now().Add(-time.Duration(d.cfg.IdleWindowMinutes) * time.Minute)
		recent, err := tx.Locations().RecentByVehicle(vehicleID, since, 2)
		if err != nil {
			return err
		}
		if dr := d.cfg.CheckRouteDeviation(m, lat, lon); dr != nil {
			drafts = append(drafts, *dr)
		}
		if speedKmh != nil {
			if dr := d.cfg.CheckSpeeding(*speedKmh); dr != nil {
				drafts = append(drafts, *dr)
			}
		}
		if dr := d.cfg.CheckIdle(recent); dr != nil {
			drafts = append(drafts, *dr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// RunBatch runs detection for every in-progress mission and persists the
// results. Callers without one of the configured roles are rejected before
// any rule runs. A failure evaluating one mission is logged and skipped;
// it never aborts the rest of the fleet.
func (d *Detector) RunBatch(ctx context.Context, role model.Role) (Report, error) {
	if !d.cfg.RoleAllowed(role) {
		return Report{}, fault.Forbidden("role %s may not run anomaly detection", role)
	}
	start := d.now()

	var missions []model.Mission
	err := d.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		missions, err = tx.Missions().ListByStatus(model.MissionInProgress)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("list missions: %w", err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report Report
	)
	for _, m := range missions {
		wg.Add(1)
		go func(m model.Mission) {
			defer wg.Done()
			created, err := d.evalMission(ctx, m)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				missionEvalErrors.Inc()
				report.SkippedMissions++
				d.log.Errorf("detection skipped mission %s: %v", m.ID, err)
				return
			}
			report.Anomalies = append(report.Anomalies, created...)
			report.Created += len(created)
		}(m)
	}
	wg.Wait()

	for _, a := range report.Anomalies {
		anomaliesDetected.WithLabelValues(a.Type.String(), a.Severity.String()).Inc()
		if err := d.sink.RecordAnomaly(coremetrics.AnomalyEvent{Anomaly: a, Component: "detector", Time: a.DetectedAt}); err != nil {
			d.log.Errorf("anomaly sink error: %v", err)
		}
		if d.bus != nil {
			d.bus.Publish(events.AnomalyEvent{Anomaly: a})
		}
	}

	dur := d.now().Sub(start)
	detectionDuration.Observe(dur.Seconds())
	if err := d.sink.RecordDetectionRun(coremetrics.DetectionRunEvent{
		Missions:  len(missions),
		Created:   report.Created,
		Failed:    report.SkippedMissions,
		Duration:  dur,
		Component: "detector",
		Time:      start,
	}); err != nil {
		d.log.Errorf("detection run sink error: %v", err)
	}
	d.log.Infof("detection pass over %d missions created %d anomalies", len(missions), report.Created)
	return report, nil
}

// Resolve marks an anomaly handled. Managers and admins only; resolving
// twice is rejected.
func (d *Detector) Resolve(ctx context.Context, role model.Role, anomalyID, notes string) (model.Anomaly, error) {
	if role != model.RoleManager && role != model.RoleAdmin {
		return model.Anomaly{}, fault.Forbidden("role %s may not resolve anomalies", role)
	}
	var out model.Anomaly
	err := d.store.RunInTx(ctx, func(tx store.Tx) error {
		a, err := tx.Anomalies().Get(anomalyID)
		if err != nil {
			return err
		}
		if a.Resolved {
			return fault.InvalidState("anomaly %s is already resolved", anomalyID)
		}
		a.Resolve(notes, d.now())
		if err := tx.Anomalies().Put(a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Anomaly{}, err
	}
	return out, nil
}

// evalMission runs every applicable rule for one mission and persists the
// drafts in a single transaction.
func (d *Detector) evalMission(ctx context.Context, m model.Mission) ([]model.Anomaly, error) {
	now := d.now()
	var created []model.Anomaly
	err := d.store.RunInTx(ctx, func(tx store.Tx) error {
		created = created[:0]
		if _, err := tx.Vehicles().Get(m.VehicleID); err != nil {
			return err
		}
		var drafts []Draft
		latest, ok, err := tx.Locations().LatestByVehicle(m.VehicleID)
		if err != nil {
			return err
		}
		if ok {
			if dr := d.cfg.CheckRouteDeviation(m, latest.Lat, latest.Lon); dr != nil {
				drafts = append(drafts, *dr)
			}
			if latest.SpeedKmh != nil {
				if dr := d.cfg.CheckSpeeding(*latest.SpeedKmh); dr != nil {
					drafts = append(drafts, *dr)
				}
			}
			since := now.Add(-time.Duration(d.cfg.IdleWindowMinutes) * time.Minute)
			recent, err := tx.Locations().RecentByVehicle(m.VehicleID, since, 2)
			if err != nil {
				return err
			}
			if dr := d.cfg.CheckIdle(recent); dr != nil {
				drafts = append(drafts, *dr)
			}
		}
		// Schedule delay does not require a telemetry trace.
		if dr := d.cfg.CheckScheduleDelay(m, now); dr != nil {
			drafts = append(drafts, *dr)
		}
		for _, dr := range drafts {
			a := draftToAnomaly(dr, m, now)
			if err := tx.Anomalies().Append(a); err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func draftToAnomaly(dr Draft, m model.Mission, at time.Time) model.Anomaly {
	return model.Anomaly{
		ID:          uuid.NewString(),
		Type:        dr.Type,
		Severity:    dr.Severity,
		Description: dr.Description,
		DetectedAt:  at,
		VehicleID:   m.VehicleID,
		MissionID:   m.ID,
		OperatorID:  m.OperatorID,
		Lat:         dr.Lat,
		Lon:         dr.Lon,
	}
}
