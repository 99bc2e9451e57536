// Package metrics exposes Prometheus collectors for the factory data service.
//
// A private registry is used instead of the global default so tests can
// create independent instances. The API mounts Handler at /metrics.
package metrics
