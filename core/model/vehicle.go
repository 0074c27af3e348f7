package model

import (
	"fmt"
	"time"
)

// VehicleStatus defines the operational state of a vehicle.
type VehicleStatus int

const (
	VehicleAvailable VehicleStatus = iota
	VehicleInUse
	VehicleMaintenance
	VehicleOutOfService
)

// String returns a human-readable representation of the status.
func (s VehicleStatus) String() string {
	switch s {
	case VehicleAvailable:
		return "available"
	case VehicleInUse:
		return "in_use"
	case VehicleMaintenance:
		return "maintenance"
	case VehicleOutOfService:
		return "out_of_service"
	default:
		return "unknown"
	}
}

// ParseVehicleStatus converts a wire string into a VehicleStatus.
// Invalid values are rejected at the boundary.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	switch s {
	case "available":
		return VehicleAvailable, nil
	case "in_use":
		return VehicleInUse, nil
	case "maintenance":
		return VehicleMaintenance, nil
	case "out_of_service":
		return VehicleOutOfService, nil
	default:
		return 0, fmt.Errorf("invalid vehicle status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s VehicleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *VehicleStatus) UnmarshalText(b []byte) error {
	v, err := ParseVehicleStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are inside the WGS84 range.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Vehicle represents one fleet vehicle.
type Vehicle struct {
	ID           string        `json:"id"`
	LicensePlate string        `json:"license_plate"`
	Brand        string        `json:"brand"`
	Model        string        `json:"model"`
	Year         int           `json:"year,omitempty"`
	FuelType     string        `json:"fuel_type,omitempty"`
	Status       VehicleStatus `json:"status"`

	// Position is nil until the first telemetry sample arrives.
	Position     *GeoPoint `json:"position,omitempty"`
	LastSeenAt   time.Time `json:"last_seen_at,omitempty"`
	DriverUserID string    `json:"driver_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdatePosition records the vehicle's latest known position.
func (v *Vehicle) UpdatePosition(lat, lon float64, at time.Time) {
	v.Position = &GeoPoint{Lat: lat, Lon: lon}
	v.LastSeenAt = at
	v.UpdatedAt = at
}
