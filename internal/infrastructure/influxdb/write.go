package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementLifecycle records one point per committed factory data change.
const MeasurementLifecycle = "factory_data_lifecycle"

// LifecyclePoint describes a provisioning, update or decommissioning.
//
// Action, DeviceType and Region are indexed as tags; they have low
// cardinality. Serial numbers are deliberately absent.
type LifecyclePoint struct {
	Action     string
	DeviceType string
	Region     string
	// Mirror is the SWM outcome (mirrored, skipped, not_found, failed).
	Mirror     string
	OccurredAt time.Time
}

// WriteLifecycle writes a lifecycle point. The write is non-blocking; the
// point is batched and sent asynchronously. Calls on a closed client are
// dropped.
func (c *Client) WriteLifecycle(p LifecyclePoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newLifecyclePoint(p))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//   - timestamp: The exact time for this data point
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func newLifecyclePoint(p LifecyclePoint) *write.Point {
	tags := map[string]string{"action": p.Action}
	if p.DeviceType != "" {
		tags["device_type"] = p.DeviceType
	}
	if p.Region != "" {
		tags["region"] = p.Region
	}

	ts := p.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementLifecycle,
		tags,
		map[string]interface{}{
			"count":    int64(1),
			"mirrored": p.Mirror == "mirrored",
			"mirror":   p.Mirror,
		},
		ts,
	)
}
