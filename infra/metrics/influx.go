package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/fleetsense/fleettrack/core/metrics"
	"github.com/fleetsense/fleettrack/infra/logger"
)

// InfluxSink writes telemetry and anomaly events to an InfluxDB instance
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordSample writes one location sample as line protocol.
func (s *InfluxSink) RecordSample(ev coremetrics.SampleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sm := ev.Sample
	p := write.NewPointWithMeasurement("location_sample").
		AddTag("vehicle_id", sm.VehicleID).
		AddTag("component", ev.Component).
		AddField("lat", round6(sm.Lat)).
		AddField("lon", round6(sm.Lon)).
		SetTime(ev.Time)
	if sm.MissionID != "" {
		p = p.AddTag("mission_id", sm.MissionID)
	}
	if sm.SpeedKmh != nil {
		p = p.AddField("speed_kmh", round3(*sm.SpeedKmh))
	}
	if sm.HeadingDeg != nil {
		p = p.AddField("heading_deg", round3(*sm.HeadingDeg))
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAnomaly writes one anomaly event.
func (s *InfluxSink) RecordAnomaly(ev coremetrics.AnomalyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a := ev.Anomaly
	p := write.NewPointWithMeasurement("anomaly_event").
		AddTag("vehicle_id", a.VehicleID).
		AddTag("type", a.Type.String()).
		AddTag("severity", a.Severity.String()).
		AddTag("component", ev.Component).
		AddField("description", a.Description).
		SetTime(ev.Time)
	if a.MissionID != "" {
		p = p.AddTag("mission_id", a.MissionID)
	}
	if a.Lat != nil && a.Lon != nil {
		p = p.AddField("lat", round6(*a.Lat)).AddField("lon", round6(*a.Lon))
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDetectionRun writes the summary of one batch pass.
func (s *InfluxSink) RecordDetectionRun(ev coremetrics.DetectionRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("detection_pass").
		AddTag("component", ev.Component).
		AddField("missions", ev.Missions).
		AddField("created", ev.Created).
		AddField("failed", ev.Failed).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
