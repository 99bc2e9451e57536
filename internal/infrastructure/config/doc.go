// Package config loads and validates the factory data service configuration.
//
// Values come from three layers, later layers winning:
//   - hardcoded defaults
//   - a YAML file
//   - FACTORYDATA_* environment variables
//
// Credentials (JWT secret, SWM password, InfluxDB token) should be supplied
// through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
