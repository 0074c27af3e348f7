// Package telemetry implements ingestion and retrieval of the vehicle
// location trace.
package telemetry

import (
	"context"
	"fmt"
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

// PositionCache keeps the latest known position per vehicle for cheap
// lookups. Cache writes are best effort; a failing cache never fails an
// ingest.
type PositionCache interface {
	SetPosition(ctx context.Context, s model.LocationSample) error
}

// Service ingests location samples and serves trace queries.
type Service struct {
	store store.Store
	log   logger.Logger
	sink  coremetrics.Sink
	cache PositionCache
	bus   eventbus.EventBus
	now   func() time.Time
}

// New creates a telemetry Service.
func New(st store.Store, log logger.Logger) (*Service, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("telemetry: nil parameter provided to New")
	}
	return &Service{store: st, log: log, sink: coremetrics.NopSink{}, now: time.Now}, nil
}

// SetSink configures the observability sink.
func (s *Service) SetSink(sink coremetrics.Sink) {
	if sink != nil {
		s.sink = sink
	}
}

// SetCache configures the latest-position cache.
func (s *Service) SetCache(c PositionCache) { s.cache = c }

// SetBus configures the event bus samples are announced on.
func (s *Service) SetBus(bus eventbus.EventBus) { s.bus = bus }

// SetClock overrides the time source, used by tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Ingest validates and appends one location sample, moving the vehicle's
// current position along with it.
func (s *Service) Ingest(ctx context.Context, sample model.LocationSample) (model.LocationSample, error) {
	if sample.VehicleID == "" {
		return model.LocationSample{}, fault.Validation("sample is missing its vehicle reference")
	}
	p := model.GeoPoint{Lat: sample.Lat, Lon: sample.Lon}
	if !p.Valid() {
		return model.LocationSample{}, fault.Validation("sample coordinates out of range")
	}
	if sample.SpeedKmh != nil && *sample.SpeedKmh < 0 {
		return model.LocationSample{}, fault.Validation("negative speed")
	}
	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now()
	}
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		v, err := tx.Vehicles().Get(sample.VehicleID)
		if err != nil {
			return err
		}
		if sample.MissionID != "" {
			if _, err := tx.Missions().Get(sample.MissionID); err != nil {
				return err
			}
		}
		if err := tx.Locations().Append(sample); err != nil {
			return err
		}
		v.UpdatePosition(sample.Lat, sample.Lon, sample.Timestamp)
		return tx.Vehicles().Put(v)
	})
	if err != nil {
		return model.LocationSample{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetPosition(ctx, sample); err != nil {
			s.log.Warnf("position cache write for vehicle %s: %v", sample.VehicleID, err)
		}
	}
	if err := s.sink.RecordSample(coremetrics.SampleEvent{Sample: sample, Component: "telemetry", Time: sample.Timestamp}); err != nil {
		s.log.Errorf("sample sink error: %v", err)
	}
	if s.bus != nil {
		s.bus.Publish(events.SampleEvent{Sample: sample})
	}
	return sample, nil
}

// Recent returns the vehicle's samples inside the trailing window, newest
// first.
func (s *Service) Recent(ctx context.Context, vehicleID string, window time.Duration) ([]model.LocationSample, error) {
	if window <= 0 {
		return nil, fault.Validation("window must be positive")
	}
	since := s.now().Add(-window)
	var out []model.LocationSample
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Vehicles().Get(vehicleID); err != nil {
			return err
		}
		var err error
		out, err = tx.Locations().RecentByVehicle(vehicleID, since, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MissionTrace returns every sample recorded for the mission in insertion
// order.
func (s *Service) MissionTrace(ctx context.Context, missionID string) ([]model.LocationSample, error) {
	var out []model.LocationSample
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Missions().Get(missionID); err != nil {
			return err
		}
		var err error
		out, err = tx.Locations().ByMission(missionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes samples older than the cutoff and returns the removed
// count. Admin only.
func (s *Service) Prune(ctx context.Context, callerRole model.Role, olderThan time.Time) (int, error) {
	if callerRole != model.RoleAdmin {
		return 0, fault.Forbidden("role %s may not prune telemetry", callerRole)
	}
	var removed int
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		removed, err = tx.Locations().DeleteOlderThan(olderThan)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Infof("pruned %d samples older than %s", removed, olderThan.Format(time.RFC3339))
	return removed, nil
}
