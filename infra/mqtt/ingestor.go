package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetsense/fleettrack/core/model"
)

// Ingestor accepts decoded samples. The telemetry service implements it.
type Ingestor interface {
	Ingest(ctx context.Context, sample model.LocationSample) (model.LocationSample, error)
}

// wireSample is the broker payload published by vehicle trackers.
type wireSample struct {
	VehicleID  string   `json:"vehicle_id,omitempty"`
	MissionID  string   `json:"mission_id,omitempty"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Altitude   *float64 `json:"altitude,omitempty"`
	SpeedKmh   *float64 `json:"speed_kmh,omitempty"`
	HeadingDeg *float64 `json:"heading_deg,omitempty"`
	AccuracyM  *float64 `json:"accuracy_m,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

// SubscribeTelemetry subscribes to the telemetry topic and feeds decoded
// samples into ing. The vehicle id is taken from the topic segment when
// the payload omits it.
func (c *Client) SubscribeTelemetry(ctx context.Context, ing Ingestor) error {
	handler := func(_ paho.Client, msg paho.Message) {
		var w wireSample
		if err := json.Unmarshal(msg.Payload(), &w); err != nil {
			c.log.Errorf("failed to decode telemetry on %s: %v", msg.Topic(), err)
			return
		}
		sample := model.LocationSample{
			Lat:        w.Lat,
			Lon:        w.Lon,
			Altitude:   w.Altitude,
			SpeedKmh:   w.SpeedKmh,
			HeadingDeg: w.HeadingDeg,
			AccuracyM:  w.AccuracyM,
			VehicleID:  w.VehicleID,
			MissionID:  w.MissionID,
		}
		if sample.VehicleID == "" {
			sample.VehicleID = vehicleFromTopic(msg.Topic())
		}
		if w.Timestamp != "" {
			ts, err := time.Parse(time.RFC3339, w.Timestamp)
			if err != nil {
				c.log.Errorf("bad timestamp %q on %s: %v", w.Timestamp, msg.Topic(), err)
				return
			}
			sample.Timestamp = ts
		}
		if _, err := ing.Ingest(ctx, sample); err != nil {
			c.log.Errorf("ingest from %s: %v", msg.Topic(), err)
		}
	}
	token := c.cli.Subscribe(c.cfg.TelemetryTopic, c.qos("telemetry"), handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	c.log.Infof("subscribed to %s", c.cfg.TelemetryTopic)
	return nil
}

// vehicleFromTopic extracts the vehicle segment of fleet/<id>/telemetry.
func vehicleFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
