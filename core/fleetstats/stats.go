// Package fleetstats computes summary statistics over the telemetry trace.
package fleetstats

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fleetsense/fleettrack/core/geo"
	"github.com/fleetsense/fleettrack/core/logger"
	"github.com/fleetsense/fleettrack/core/store"
)

// BoundingBox is the smallest lat/lon rectangle covering the samples.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Summary aggregates a window of fleet telemetry.
type Summary struct {
	Vehicles int `json:"vehicles"`
	Samples  int `json:"samples"`

	// Speed statistics cover only samples that reported a speed.
	MeanSpeedKmh float64 `json:"mean_speed_kmh"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
	MinSpeedKmh  float64 `json:"min_speed_kmh"`

	BBox BoundingBox `json:"bbox"`

	// DistanceKm is the great-circle path length per vehicle.
	DistanceKm map[string]float64 `json:"distance_km"`
	TotalKm    float64            `json:"total_km"`
}

// Service computes fleet summaries.
type Service struct {
	store store.Store
	log   logger.Logger
}

// New creates a fleetstats Service.
func New(st store.Store, log logger.Logger) (*Service, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("fleetstats: nil parameter provided to New")
	}
	return &Service{store: st, log: log}, nil
}

// Summarize computes the summary over every sample newer than since.
func (s *Service) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	sum := Summary{DistanceKm: map[string]float64{}}
	var speeds []float64
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		clear(sum.DistanceKm)
		speeds = speeds[:0]
		sum.Vehicles, sum.Samples, sum.TotalKm = 0, 0, 0
		vehicles, err := tx.Vehicles().List()
		if err != nil {
			return err
		}
		first := true
		for _, v := range vehicles {
			trace, err := tx.Locations().RecentByVehicle(v.ID, since, 0)
			if err != nil {
				return err
			}
			if len(trace) == 0 {
				continue
			}
			sum.Vehicles++
			sum.Samples += len(trace)

			var dist float64
			// Trace is newest first; walk it backwards for the path.
			for i := len(trace) - 1; i >= 0; i-- {
				p := trace[i]
				if first {
					sum.BBox = BoundingBox{MinLat: p.Lat, MaxLat: p.Lat, MinLon: p.Lon, MaxLon: p.Lon}
					first = false
				} else {
					sum.BBox.MinLat = min(sum.BBox.MinLat, p.Lat)
					sum.BBox.MaxLat = max(sum.BBox.MaxLat, p.Lat)
					sum.BBox.MinLon = min(sum.BBox.MinLon, p.Lon)
					sum.BBox.MaxLon = max(sum.BBox.MaxLon, p.Lon)
				}
				if p.SpeedKmh != nil {
					speeds = append(speeds, *p.SpeedKmh)
				}
				if i < len(trace)-1 {
					prev := trace[i+1]
					dist += geo.Distance(prev.Lat, prev.Lon, p.Lat, p.Lon)
				}
			}
			sum.DistanceKm[v.ID] = dist
			sum.TotalKm += dist
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	if len(speeds) > 0 {
		sum.MeanSpeedKmh = stat.Mean(speeds, nil)
		sum.MaxSpeedKmh = floats.Max(speeds)
		sum.MinSpeedKmh = floats.Min(speeds)
	}
	s.log.Debugf("summarized %d samples across %d vehicles", sum.Samples, sum.Vehicles)
	return sum, nil
}
