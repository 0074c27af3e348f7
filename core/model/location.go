package model

import "time"

// LocationSample is one timestamped GPS observation for a vehicle.
// Samples are append-only and never updated after insertion.
type LocationSample struct {
	ID       string   `json:"id"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Altitude *float64 `json:"altitude,omitempty"`
	// SpeedKmh is the observed ground speed in km/h, nil when the
	// receiver did not report one.
	SpeedKmh *float64 `json:"speed_kmh,omitempty"`
	// HeadingDeg is the direction of travel in degrees [0,360).
	HeadingDeg *float64 `json:"heading_deg,omitempty"`
	// AccuracyM is the GPS accuracy estimate in meters.
	AccuracyM *float64 `json:"accuracy_m,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	VehicleID string    `json:"vehicle_id"`
	MissionID string    `json:"mission_id,omitempty"`
}
