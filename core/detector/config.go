package detector

import (
	"fmt"

	"github.com/fleetsense/fleettrack/core/model"
)

// Config defines detection thresholds and the roles allowed to run batch
// detection. Defaults match the operational policy of the fleet.
type Config struct {
	// DeviationThresholdKm flags a route deviation when the vehicle is
	// farther than this from both mission anchors.
	DeviationThresholdKm float64 `json:"deviation_threshold_km"`
	// SpeedLimitKmh is the fleet-wide speed limit.
	SpeedLimitKmh float64 `json:"speed_limit_kmh"`
	// HighSpeedFactor escalates speeding to high severity above
	// factor*limit.
	HighSpeedFactor float64 `json:"high_speed_factor"`
	// IdleWindowMinutes is the trailing window inspected for idling.
	IdleWindowMinutes int `json:"idle_window_minutes"`
	// IdleDistanceKm is the movement below which a vehicle counts as idle.
	IdleDistanceKm float64 `json:"idle_distance_km"`
	// StartDelayHighMinutes escalates a late start to high severity.
	StartDelayHighMinutes int `json:"start_delay_high_minutes"`
	// EndDelayHighMinutes escalates an overdue mission to high severity.
	EndDelayHighMinutes int `json:"end_delay_high_minutes"`
	// RunRoles lists the roles allowed to trigger batch detection.
	RunRoles []string `json:"run_roles"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DeviationThresholdKm == 0 {
		c.DeviationThresholdKm = 2
	}
	if c.SpeedLimitKmh == 0 {
		c.SpeedLimitKmh = 80
	}
	if c.HighSpeedFactor == 0 {
		c.HighSpeedFactor = 1.5
	}
	if c.IdleWindowMinutes == 0 {
		c.IdleWindowMinutes = 30
	}
	if c.IdleDistanceKm == 0 {
		c.IdleDistanceKm = 0.1
	}
	if c.StartDelayHighMinutes == 0 {
		c.StartDelayHighMinutes = 60
	}
	if c.EndDelayHighMinutes == 0 {
		c.EndDelayHighMinutes = 120
	}
	if len(c.RunRoles) == 0 {
		c.RunRoles = []string{model.RoleAdmin.String(), model.RoleManager.String()}
	}
}

// Validate checks threshold sanity and role names.
func (c Config) Validate() error {
	if c.DeviationThresholdKm <= 0 {
		return fmt.Errorf("deviation_threshold_km must be positive")
	}
	if c.SpeedLimitKmh <= 0 {
		return fmt.Errorf("speed_limit_kmh must be positive")
	}
	if c.HighSpeedFactor <= 1 {
		return fmt.Errorf("high_speed_factor must exceed 1")
	}
	if c.IdleWindowMinutes <= 0 || c.IdleDistanceKm <= 0 {
		return fmt.Errorf("idle thresholds must be positive")
	}
	for _, r := range c.RunRoles {
		if _, err := model.ParseRole(r); err != nil {
			return fmt.Errorf("run_roles: %w", err)
		}
	}
	return nil
}

// RoleAllowed reports whether the role may trigger batch detection.
func (c Config) RoleAllowed(role model.Role) bool {
	for _, r := range c.RunRoles {
		if r == role.String() {
			return true
		}
	}
	return false
}
