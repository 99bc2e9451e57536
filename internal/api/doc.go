// Package api implements the HTTP REST API of the factory data service.
//
// This package provides:
//   - Factory data provisioning, search, counts and history endpoints
//   - Vehicle update and decommissioning endpoints mirrored to SWM
//   - JWT bearer authentication with role permissions
//   - Middleware stack (request ID, logging, metrics, recovery, CORS)
//   - Prometheus exposition on /metrics and OpenTelemetry server spans
//
// # Responses
//
// Every body is an Envelope: request id, a code/reason/message triple,
// optional pagination and data, and optional per-component error entries.
// Validation errors map to 400 (409 for duplicates), unknown records to 404,
// SWM failures to 502 and SWM session failures to 503. When a local change
// committed but SWM failed, the stored record is still returned as data.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
