// Package mission implements the mission lifecycle state machine and its
// side effects on vehicle assignment and telemetry.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetsense/fleettrack/core/events"
	"github.com/fleetsense/fleettrack/core/fault"
	"github.com/fleetsense/fleettrack/core/logger"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/core/store"
	"github.com/fleetsense/fleettrack/internal/eventbus"
)

// Config carries the lifecycle policy knobs.
type Config struct {
	// CheckReassignAvailability extends the vehicle-availability check on
	// reassignment to non-pending missions as well. Off by default, which
	// matches the historical behavior of only guarding pending missions.
	CheckReassignAvailability bool `json:"check_reassign_availability"`
}

// Advancer produces the next simulated position for a mission's vehicle.
// The simulator implements it; Start uses it to prime the telemetry trace.
type Advancer interface {
	Advance(ctx context.Context, missionID string) error
}

// Service drives mission state transitions. Each transition commits its
// mission and vehicle writes in one transaction.
type Service struct {
	cfg   Config
	store store.Store
	log   logger.Logger
	bus   eventbus.EventBus
	sim   Advancer
	now   func() time.Time
}

// New creates a mission Service.
func New(cfg Config, st store.Store, log logger.Logger) (*Service, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("mission: nil parameter provided to New")
	}
	return &Service{cfg: cfg, store: st, log: log, now: time.Now}, nil
}

// SetBus configures the event bus transitions are announced on.
func (s *Service) SetBus(bus eventbus.EventBus) { s.bus = bus }

// SetSimulator configures the telemetry advancer used after Start.
func (s *Service) SetSimulator(sim Advancer) { s.sim = sim }

// SetClock overrides the time source, used by tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateSpec is the input to Create.
type CreateSpec struct {
	Title        string
	Description  string
	Priority     model.Priority
	Start        model.GeoPoint
	StartAddress string
	End          model.GeoPoint
	EndAddress   string

	ScheduledStart time.Time
	ScheduledEnd   time.Time

	OperatorID  string
	VehicleID   string
	CreatedByID string
}

func (sp CreateSpec) validate() error {
	if sp.Title == "" {
		return fault.Validation("mission title is required")
	}
	if !sp.Start.Valid() || !sp.End.Valid() {
		return fault.Validation("mission coordinates out of range")
	}
	if sp.ScheduledStart.IsZero() || sp.ScheduledEnd.IsZero() {
		return fault.Validation("scheduled window is required")
	}
	if !sp.ScheduledEnd.After(sp.ScheduledStart) {
		return fault.Validation("scheduled end must be after scheduled start")
	}
	if sp.OperatorID == "" || sp.VehicleID == "" {
		return fault.Validation("operator and vehicle are required")
	}
	return nil
}

// Create registers a new pending mission and claims its vehicle. Managers
// and admins only.
func (s *Service) Create(ctx context.Context, callerRole model.Role, sp CreateSpec) (model.Mission, error) {
	if callerRole != model.RoleManager && callerRole != model.RoleAdmin {
		return model.Mission{}, fault.Forbidden("role %s may not create missions", callerRole)
	}
	if err := sp.validate(); err != nil {
		return model.Mission{}, err
	}
	now := s.now()
	m := model.Mission{
		ID:             uuid.NewString(),
		Title:          sp.Title,
		Description:    sp.Description,
		Status:         model.MissionPending,
		Priority:       sp.Priority,
		Start:          sp.Start,
		StartAddress:   sp.StartAddress,
		End:            sp.End,
		EndAddress:     sp.EndAddress,
		ScheduledStart: sp.ScheduledStart,
		ScheduledEnd:   sp.ScheduledEnd,
		OperatorID:     sp.OperatorID,
		VehicleID:      sp.VehicleID,
		CreatedByID:    sp.CreatedByID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().Get(sp.OperatorID); err != nil {
			return err
		}
		v, err := tx.Vehicles().Get(sp.VehicleID)
		if err != nil {
			return err
		}
		if v.Status != model.VehicleAvailable {
			return fault.VehicleUnavailable("vehicle %s is %s", v.ID, v.Status)
		}
		v.Status = model.VehicleInUse
		v.UpdatedAt = now
		if err := tx.Vehicles().Put(v); err != nil {
			return err
		}
		return tx.Missions().Put(m)
	})
	if err != nil {
		return model.Mission{}, err
	}
	s.publish(m, "created")
	s.log.Infof("mission %s created for vehicle %s", m.ID, m.VehicleID)
	return m, nil
}

// Start moves a pending mission to in_progress. Only the assigned operator
// may start it. The telemetry trace is anchored with a zero-speed sample at
// the start coordinates, and one simulated advance follows the commit.
func (s *Service) Start(ctx context.Context, missionID, callerUserID string) (model.Mission, error) {
	now := s.now()
	var m model.Mission
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		if m.OperatorID != callerUserID {
			return fault.Forbidden("user %s is not assigned to mission %s", callerUserID, missionID)
		}
		if m.Status != model.MissionPending {
			return fault.InvalidState("mission %s is %s, cannot start", missionID, m.Status)
		}
		m.Status = model.MissionInProgress
		m.ActualStart = &now
		m.UpdatedAt = now
		if err := tx.Missions().Put(m); err != nil {
			return err
		}
		v, err := tx.Vehicles().Get(m.VehicleID)
		if err != nil {
			return err
		}
		if v.Status != model.VehicleInUse {
			v.Status = model.VehicleInUse
			v.UpdatedAt = now
			if err := tx.Vehicles().Put(v); err != nil {
				return err
			}
		}
		zero := 0.0
		return tx.Locations().Append(model.LocationSample{
			ID:         uuid.NewString(),
			Lat:        m.Start.Lat,
			Lon:        m.Start.Lon,
			SpeedKmh:   &zero,
			HeadingDeg: &zero,
			Timestamp:  now,
			VehicleID:  m.VehicleID,
			MissionID:  m.ID,
		})
	})
	if err != nil {
		return model.Mission{}, err
	}
	s.publish(m, "started")
	if s.sim != nil {
		if err := s.sim.Advance(ctx, m.ID); err != nil {
			s.log.Warnf("post-start simulation for mission %s: %v", m.ID, err)
		}
	}
	return m, nil
}

// Complete moves an in-progress mission to completed and releases the
// vehicle. Only the assigned operator may complete it.
func (s *Service) Complete(ctx context.Context, missionID, callerUserID string) (model.Mission, error) {
	now := s.now()
	var m model.Mission
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		if m.OperatorID != callerUserID {
			return fault.Forbidden("user %s is not assigned to mission %s", callerUserID, missionID)
		}
		if m.Status != model.MissionInProgress {
			return fault.InvalidState("mission %s is %s, cannot complete", missionID, m.Status)
		}
		m.Status = model.MissionCompleted
		m.ActualEnd = &now
		m.UpdatedAt = now
		if err := tx.Missions().Put(m); err != nil {
			return err
		}
		return s.releaseVehicle(tx, m.VehicleID, now)
	})
	if err != nil {
		return model.Mission{}, err
	}
	s.publish(m, "completed")
	return m, nil
}

// Cancel aborts a pending or in-progress mission and releases the vehicle.
// Managers and admins only.
func (s *Service) Cancel(ctx context.Context, missionID string, callerRole model.Role) (model.Mission, error) {
	if callerRole != model.RoleManager && callerRole != model.RoleAdmin {
		return model.Mission{}, fault.Forbidden("role %s may not cancel missions", callerRole)
	}
	now := s.now()
	var m model.Mission
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		if m.Status.Terminal() {
			return fault.InvalidState("mission %s is already %s", missionID, m.Status)
		}
		m.Status = model.MissionCancelled
		m.UpdatedAt = now
		if err := tx.Missions().Put(m); err != nil {
			return err
		}
		return s.releaseVehicle(tx, m.VehicleID, now)
	})
	if err != nil {
		return model.Mission{}, err
	}
	s.publish(m, "cancelled")
	return m, nil
}

// Delete removes a pending or cancelled mission, releasing the vehicle if
// this mission still held it. Managers and admins only.
func (s *Service) Delete(ctx context.Context, missionID string, callerRole model.Role) error {
	if callerRole != model.RoleManager && callerRole != model.RoleAdmin {
		return fault.Forbidden("role %s may not delete missions", callerRole)
	}
	now := s.now()
	var m model.Mission
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		if m.Status != model.MissionPending && m.Status != model.MissionCancelled {
			return fault.InvalidState("mission %s is %s, cannot delete", missionID, m.Status)
		}
		if m.Status == model.MissionPending {
			if err := s.releaseVehicle(tx, m.VehicleID, now); err != nil {
				return err
			}
		}
		return tx.Missions().Delete(missionID)
	})
	if err != nil {
		return err
	}
	s.publish(m, "deleted")
	return nil
}

// UpdateSpec carries the editable mission fields. Nil pointers leave the
// field untouched.
type UpdateSpec struct {
	Title          *string
	Description    *string
	Priority       *model.Priority
	Start          *model.GeoPoint
	StartAddress   *string
	End            *model.GeoPoint
	EndAddress     *string
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	VehicleID      *string
}

// Update edits mission fields. Routing and schedule fields change only
// while the mission is pending; terminal missions accept only title and
// description edits. Vehicle reassignment swaps the claims and stays
// possible until the mission reaches a terminal state, availability
// checked per the pending rule and the reassign policy.
func (s *Service) Update(ctx context.Context, missionID string, callerRole model.Role, up UpdateSpec) (model.Mission, error) {
	if callerRole != model.RoleManager && callerRole != model.RoleAdmin {
		return model.Mission{}, fault.Forbidden("role %s may not update missions", callerRole)
	}
	now := s.now()
	var m model.Mission
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		if up.Title != nil {
			m.Title = *up.Title
		}
		if up.Description != nil {
			m.Description = *up.Description
		}
		structural := up.Priority != nil || up.Start != nil || up.End != nil ||
			up.StartAddress != nil || up.EndAddress != nil ||
			up.ScheduledStart != nil || up.ScheduledEnd != nil
		if structural && m.Status != model.MissionPending {
			return fault.InvalidState("mission %s is %s, only metadata may change", missionID, m.Status)
		}
		if up.VehicleID != nil && m.Status.Terminal() {
			return fault.InvalidState("mission %s is %s, the vehicle can no longer change", missionID, m.Status)
		}
		if up.Priority != nil {
			m.Priority = *up.Priority
		}
		if up.Start != nil {
			if !up.Start.Valid() {
				return fault.Validation("start coordinates out of range")
			}
			m.Start = *up.Start
		}
		if up.End != nil {
			if !up.End.Valid() {
				return fault.Validation("end coordinates out of range")
			}
			m.End = *up.End
		}
		if up.StartAddress != nil {
			m.StartAddress = *up.StartAddress
		}
		if up.EndAddress != nil {
			m.EndAddress = *up.EndAddress
		}
		if up.ScheduledStart != nil {
			m.ScheduledStart = *up.ScheduledStart
		}
		if up.ScheduledEnd != nil {
			m.ScheduledEnd = *up.ScheduledEnd
		}
		if !m.ScheduledEnd.After(m.ScheduledStart) {
			return fault.Validation("scheduled end must be after scheduled start")
		}
		if up.VehicleID != nil && *up.VehicleID != m.VehicleID {
			if err := s.reassignVehicle(tx, &m, *up.VehicleID, now); err != nil {
				return err
			}
		}
		m.UpdatedAt = now
		return tx.Missions().Put(m)
	})
	if err != nil {
		return model.Mission{}, err
	}
	s.publish(m, "updated")
	return m, nil
}

// reassignVehicle swaps the mission's vehicle, releasing the old claim and
// taking the new one. Availability is enforced while the mission is
// pending, or always when the policy says so.
func (s *Service) reassignVehicle(tx store.Tx, m *model.Mission, newVehicleID string, now time.Time) error {
	nv, err := tx.Vehicles().Get(newVehicleID)
	if err != nil {
		return err
	}
	enforce := m.Status == model.MissionPending || s.cfg.CheckReassignAvailability
	if enforce && nv.Status != model.VehicleAvailable && nv.Status != model.VehicleInUse {
		return fault.VehicleUnavailable("vehicle %s is %s", nv.ID, nv.Status)
	}
	if err := s.releaseVehicle(tx, m.VehicleID, now); err != nil {
		return err
	}
	if nv.Status == model.VehicleAvailable {
		nv.Status = model.VehicleInUse
		nv.UpdatedAt = now
		if err := tx.Vehicles().Put(nv); err != nil {
			return err
		}
	}
	m.VehicleID = newVehicleID
	return nil
}

// releaseVehicle sets the vehicle back to available if it was in_use.
// Vehicles parked in maintenance or out_of_service keep their status.
func (s *Service) releaseVehicle(tx store.Tx, vehicleID string, now time.Time) error {
	v, err := tx.Vehicles().Get(vehicleID)
	if err != nil {
		return err
	}
	if v.Status != model.VehicleInUse {
		return nil
	}
	v.Status = model.VehicleAvailable
	v.UpdatedAt = now
	return tx.Vehicles().Put(v)
}

func (s *Service) publish(m model.Mission, transition string) {
	if s.bus != nil {
		s.bus.Publish(events.MissionEvent{Mission: m, Transition: transition})
	}
}
