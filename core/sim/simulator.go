// Package sim generates synthetic telemetry so detection can be exercised
// without live GPS hardware.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fleetsense/fleettrack/core/fault"
	"github.com/fleetsense/fleettrack/core/geo"
	"github.com/fleetsense/fleettrack/core/logger"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/core/store"
)

// kmPerDegree approximates one degree of latitude. Longitude is scaled by
// the cosine of the latitude.
const kmPerDegree = 111.0

// Ingestor accepts the generated samples. The telemetry service implements
// it, so simulated samples go through the same validation, caching and
// event path as live ones.
type Ingestor interface {
	Ingest(ctx context.Context, sample model.LocationSample) (model.LocationSample, error)
}

// Config tunes the generated movement.
type Config struct {
	MinSpeedKmh     float64        `json:"min_speed_kmh"`
	MaxSpeedKmh     float64        `json:"max_speed_kmh"`
	IntervalSeconds float64        `json:"interval_seconds"`
	JitterDeg       float64        `json:"jitter_deg"`
	WanderDeg       float64        `json:"wander_deg"`
	Center          model.GeoPoint `json:"center"`
}

// SetDefaults fills zero values with the standard simulation profile.
func (c *Config) SetDefaults() {
	if c.MinSpeedKmh == 0 {
		c.MinSpeedKmh = 20
	}
	if c.MaxSpeedKmh == 0 {
		c.MaxSpeedKmh = 60
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 30
	}
	if c.JitterDeg == 0 {
		c.JitterDeg = 0.0002
	}
	if c.WanderDeg == 0 {
		c.WanderDeg = 0.001
	}
	if c.Center == (model.GeoPoint{}) {
		c.Center = model.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	}
}

// Validate rejects an unusable profile.
func (c Config) Validate() error {
	if c.MinSpeedKmh <= 0 || c.MaxSpeedKmh < c.MinSpeedKmh {
		return fmt.Errorf("speed range [%v,%v] is invalid", c.MinSpeedKmh, c.MaxSpeedKmh)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval %v must be positive", c.IntervalSeconds)
	}
	return nil
}

// Simulator produces the next position for simulated vehicles.
type Simulator struct {
	cfg   Config
	store store.Store
	ing   Ingestor
	log   logger.Logger
	rng   *rand.Rand
	now   func() time.Time
}

// New creates a Simulator.
func New(cfg Config, st store.Store, ing Ingestor, log logger.Logger) (*Simulator, error) {
	if st == nil || ing == nil || log == nil {
		return nil, fmt.Errorf("sim: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim config: %w", err)
	}
	return &Simulator{
		cfg:   cfg,
		store: st,
		ing:   ing,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}, nil
}

// SetRand replaces the random source, used by tests for determinism.
func (s *Simulator) SetRand(rng *rand.Rand) {
	if rng != nil {
		s.rng = rng
	}
}

// SetClock overrides the time source, used by tests.
func (s *Simulator) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Advance moves the mission's vehicle one simulated interval toward the
// mission's destination and ingests the resulting sample.
func (s *Simulator) Advance(ctx context.Context, missionID string) error {
	var (
		m    model.Mission
		from model.GeoPoint
	)
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(missionID)
		if err != nil {
			return err
		}
		if m.Status != model.MissionInProgress {
			return fault.InvalidState("mission %s is %s, cannot simulate movement", missionID, m.Status)
		}
		last, ok, err := tx.Locations().LatestByVehicle(m.VehicleID)
		if err != nil {
			return err
		}
		if ok {
			from = model.GeoPoint{Lat: last.Lat, Lon: last.Lon}
		} else {
			from = m.Start
		}
		return nil
	})
	if err != nil {
		return err
	}

	speed := s.cfg.MinSpeedKmh + s.rng.Float64()*(s.cfg.MaxSpeedKmh-s.cfg.MinSpeedKmh)
	bearing := geo.InitialBearing(from.Lat, from.Lon, m.End.Lat, m.End.Lon)
	next := s.step(from, bearing, speed)

	heading := bearing
	sample := model.LocationSample{
		Lat:        next.Lat,
		Lon:        next.Lon,
		SpeedKmh:   &speed,
		HeadingDeg: &heading,
		Timestamp:  s.now(),
		VehicleID:  m.VehicleID,
		MissionID:  m.ID,
	}
	if _, err := s.ing.Ingest(ctx, sample); err != nil {
		return fmt.Errorf("ingest simulated sample: %w", err)
	}
	s.log.Debugf("simulated vehicle %s toward mission %s end at %.1f km/h", m.VehicleID, m.ID, speed)
	return nil
}

// StepFleet nudges every vehicle by a small random movement; vehicles with
// no trace yet are seeded near the configured center. Demo support, not
// route-following.
func (s *Simulator) StepFleet(ctx context.Context) (int, error) {
	type move struct {
		vehicleID string
		from      model.GeoPoint
	}
	var moves []move
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		moves = moves[:0]
		vehicles, err := tx.Vehicles().List()
		if err != nil {
			return err
		}
		for _, v := range vehicles {
			if v.Status == model.VehicleOutOfService {
				continue
			}
			last, ok, err := tx.Locations().LatestByVehicle(v.ID)
			if err != nil {
				return err
			}
			var from model.GeoPoint
			if ok {
				from = model.GeoPoint{Lat: last.Lat, Lon: last.Lon}
			} else {
				from = model.GeoPoint{
					Lat: s.cfg.Center.Lat + s.jitter(s.cfg.WanderDeg*10),
					Lon: s.cfg.Center.Lon + s.jitter(s.cfg.WanderDeg*10),
				}
			}
			moves = append(moves, move{vehicleID: v.ID, from: from})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	stepped := 0
	for _, mv := range moves {
		speed := s.cfg.MinSpeedKmh + s.rng.Float64()*(s.cfg.MaxSpeedKmh-s.cfg.MinSpeedKmh)
		sample := model.LocationSample{
			Lat:       mv.from.Lat + s.jitter(s.cfg.WanderDeg),
			Lon:       mv.from.Lon + s.jitter(s.cfg.WanderDeg),
			SpeedKmh:  &speed,
			Timestamp: s.now(),
			VehicleID: mv.vehicleID,
		}
		if _, err := s.ing.Ingest(ctx, sample); err != nil {
			s.log.Warnf("fleet step for vehicle %s: %v", mv.vehicleID, err)
			continue
		}
		stepped++
	}
	return stepped, nil
}

// step advances one interval along the bearing, converting the travelled
// distance to degree deltas with longitude scaled by cos(lat).
func (s *Simulator) step(from model.GeoPoint, bearingDeg, speedKmh float64) model.GeoPoint {
	distKm := speedKmh * s.cfg.IntervalSeconds / 3600
	rad := bearingDeg * math.Pi / 180
	dLat := distKm * math.Cos(rad) / kmPerDegree
	dLon := distKm * math.Sin(rad) / (kmPerDegree * math.Cos(from.Lat*math.Pi/180))
	return model.GeoPoint{
		Lat: from.Lat + dLat + s.jitter(s.cfg.JitterDeg),
		Lon: from.Lon + dLon + s.jitter(s.cfg.JitterDeg),
	}
}

// jitter returns a uniform value in [-bound, bound].
func (s *Simulator) jitter(bound float64) float64 {
	return (s.rng.Float64()*2 - 1) * bound
}
