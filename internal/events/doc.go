// Package events delivers factory data lifecycle events to the outside world.
//
// The service emits a factorydata.Event after every committed provisioning,
// update or decommissioning. Sinks here forward it to MQTT subscribers, to
// the InfluxDB lifecycle measurement and to Prometheus. Delivery is best
// effort: a failing sink logs and never fails the operation.
//
//	sink := events.Multi{
//	    events.NewMQTTSink(mqttClient, logger),
//	    events.NewInfluxSink(influxClient),
//	    events.NewMetricsSink(m),
//	}
package events
