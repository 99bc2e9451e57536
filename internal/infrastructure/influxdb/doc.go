// Package influxdb provides InfluxDB connectivity for the factory data service.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, lifecycle point writing and health monitoring.
//
// # Purpose
//
// Every committed provisioning, update or decommissioning is recorded as a
// point in the factory_data_lifecycle measurement, tagged by action, device
// type and region. Dashboards use it to chart line throughput and SWM mirror
// failure rates over time.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLifecycle(influxdb.LifecyclePoint{
//	    Action:     "PROVISIONED",
//	    DeviceType: "dashcam",
//	    Mirror:     "skipped",
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a callback.
// Connection and health check errors are returned directly.
package influxdb
