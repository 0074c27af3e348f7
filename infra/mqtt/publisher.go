package mqtt

import (
	"context"
	"encoding/json"

	"github.com/fleetsense/fleettrack/core/events"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/internal/eventbus"
)

// PublishAnomaly announces one anomaly on the anomaly topic.
func (c *Client) PublishAnomaly(a model.Anomaly) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	token := c.cli.Publish(c.cfg.AnomalyTopic, c.qos("anomaly"), false, payload)
	token.Wait()
	return token.Error()
}

// PumpAnomalies forwards anomaly events from the bus to the broker until
// the context ends.
func (c *Client) PumpAnomalies(ctx context.Context, bus eventbus.EventBus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			ae, isAnomaly := ev.(events.AnomalyEvent)
			if !isAnomaly {
				continue
			}
			if err := c.PublishAnomaly(ae.Anomaly); err != nil {
				c.log.Errorf("publish anomaly %s: %v", ae.Anomaly.ID, err)
			}
		}
	}
}
