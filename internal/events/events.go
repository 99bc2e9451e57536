package events

import (
	"context"
	"time"

	"github.com/nerrad567/factory-data-core/internal/factorydata"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/mqtt"
)

// Logger is the logging interface used by the sinks.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Payload is the JSON body published for every lifecycle event.
type Payload struct {
	Action       string    `json:"action"`
	Actor        string    `json:"actor"`
	ID           int64     `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Imei         string    `json:"imei"`
	Vin          string    `json:"vin,omitempty"`
	DeviceType   string    `json:"device_type"`
	Region       string    `json:"region,omitempty"`
	State        string    `json:"state"`
	Mirror       string    `json:"mirror"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewPayload flattens evt into its wire form.
func NewPayload(evt factorydata.Event) Payload {
	p := Payload{
		Action:     string(evt.Action),
		Actor:      evt.Actor,
		Mirror:     string(evt.Mirror),
		OccurredAt: evt.OccurredAt.UTC(),
	}
	if rec := evt.Record; rec != nil {
		p.ID = rec.ID
		p.SerialNumber = rec.SerialNumber
		p.Imei = rec.Imei
		p.Vin = rec.Vin
		p.DeviceType = rec.DeviceType
		p.Region = rec.Region
		p.State = string(rec.State)
	}
	return p
}

// Publisher is the subset of *mqtt.Client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any) error
	Topics() mqtt.Topics
}

// MQTTSink publishes lifecycle events as JSON on <prefix>/events/<action>.
type MQTTSink struct {
	client Publisher
	logger Logger
}

// NewMQTTSink creates an MQTTSink. logger may be nil.
func NewMQTTSink(client Publisher, logger Logger) *MQTTSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTSink{client: client, logger: logger}
}

// Publish sends evt. Failures are logged and dropped.
func (s *MQTTSink) Publish(_ context.Context, evt factorydata.Event) {
	topic := s.client.Topics().Event(string(evt.Action))
	if err := s.client.PublishJSON(topic, NewPayload(evt)); err != nil {
		s.logger.Warn("publishing lifecycle event failed",
			"topic", topic,
			"action", evt.Action,
			"error", err,
		)
	}
}

// LifecycleWriter is the subset of *influxdb.Client used by InfluxSink.
type LifecycleWriter interface {
	WriteLifecycle(p influxdb.LifecyclePoint)
}

// InfluxSink records one factory_data_lifecycle point per event.
type InfluxSink struct {
	writer LifecycleWriter
}

// NewInfluxSink creates an InfluxSink.
func NewInfluxSink(writer LifecycleWriter) *InfluxSink {
	return &InfluxSink{writer: writer}
}

// Publish queues the point; the write is asynchronous.
func (s *InfluxSink) Publish(_ context.Context, evt factorydata.Event) {
	p := influxdb.LifecyclePoint{
		Action:     string(evt.Action),
		Mirror:     string(evt.Mirror),
		OccurredAt: evt.OccurredAt,
	}
	if evt.Record != nil {
		p.DeviceType = evt.Record.DeviceType
		p.Region = evt.Record.Region
	}
	s.writer.WriteLifecycle(p)
}

// LifecycleCounter is the subset of *metrics.Metrics used by MetricsSink.
type LifecycleCounter interface {
	RecordLifecycle(action, deviceType, mirror string)
}

// MetricsSink counts events in Prometheus.
type MetricsSink struct {
	counter LifecycleCounter
}

// NewMetricsSink creates a MetricsSink.
func NewMetricsSink(counter LifecycleCounter) *MetricsSink {
	return &MetricsSink{counter: counter}
}

// Publish increments the lifecycle counter.
func (s *MetricsSink) Publish(_ context.Context, evt factorydata.Event) {
	deviceType := ""
	if evt.Record != nil {
		deviceType = evt.Record.DeviceType
	}
	s.counter.RecordLifecycle(string(evt.Action), deviceType, string(evt.Mirror))
}

// Multi fans an event out to every sink in order.
type Multi []factorydata.EventSink

// Publish forwards evt to each non-nil sink.
func (m Multi) Publish(ctx context.Context, evt factorydata.Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Publish(ctx, evt)
		}
	}
}
