// Package store defines the persistence contract used by the core services.
// The engine behind it is a collaborator; the core only relies on these
// interfaces and on transactional commit-or-rollback semantics.
package store

import (
	"context"
	"time"

	"github.com/fleetsense/fleettrack/core/model"
)

// Tx groups the repositories visible inside one unit of work. All writes
// performed through a Tx commit together or not at all.
type Tx interface {
	Vehicles() VehicleRepo
	Missions() MissionRepo
	Locations() LocationRepo
	Anomalies() AnomalyRepo
	Users() UserRepo
}

// Store runs units of work against the underlying engine.
type Store interface {
	// RunInTx executes fn inside a transaction. A non-nil error from fn
	// rolls back every staged write.
	RunInTx(ctx context.Context, fn func(Tx) error) error
}

// VehicleRepo accesses vehicle records.
type VehicleRepo interface {
	Get(id string) (model.Vehicle, error)
	Put(v model.Vehicle) error
	List() ([]model.Vehicle, error)
	Delete(id string) error
}

// MissionRepo accesses mission records.
type MissionRepo interface {
	Get(id string) (model.Mission, error)
	Put(m model.Mission) error
	List() ([]model.Mission, error)
	ListByStatus(s model.MissionStatus) ([]model.Mission, error)
	// ActiveByVehicle returns the pending and in_progress missions
	// referencing the vehicle.
	ActiveByVehicle(vehicleID string) ([]model.Mission, error)
	Delete(id string) error
}

// LocationRepo accesses the append-only telemetry trace.
type LocationRepo interface {
	Append(s model.LocationSample) error
	// LatestByVehicle returns the newest sample for the vehicle; ok is
	// false when the vehicle has no trace yet.
	LatestByVehicle(vehicleID string) (sample model.LocationSample, ok bool, err error)
	// RecentByVehicle returns up to limit samples newer than since,
	// newest first. limit <= 0 means no limit.
	RecentByVehicle(vehicleID string, since time.Time, limit int) ([]model.LocationSample, error)
	ByMission(missionID string) ([]model.LocationSample, error)
	// DeleteOlderThan removes samples observed before t and returns the
	// removed count. Retention cleanup is the only sanctioned delete.
	DeleteOlderThan(t time.Time) (int, error)
}

// AnomalyFilter narrows anomaly listings. Zero values match everything.
type AnomalyFilter struct {
	VehicleID string
	MissionID string
	Severity  *model.Severity
	Since     time.Time
}

// AnomalyRepo accesses anomaly records.
type AnomalyRepo interface {
	Append(a model.Anomaly) error
	Get(id string) (model.Anomaly, error)
	// Put replaces an existing record; used only to toggle resolution.
	Put(a model.Anomaly) error
	List(f AnomalyFilter) ([]model.Anomaly, error)
}

// UserRepo accesses user records.
type UserRepo interface {
	Get(id string) (model.User, error)
	Put(u model.User) error
}
