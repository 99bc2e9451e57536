// Package mqtt provides MQTT connectivity for publishing factory data events.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// Every committed provisioning, update or decommissioning is published as a
// JSON event on <prefix>/events/<action>, so downstream systems can follow
// the device lifecycle without polling the API.
//
// # Security Considerations
//
//   - TLS should be enabled in production (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Event("provisioned"), evt)
package mqtt
