// Package telemetry configures OpenTelemetry tracing.
//
// Spans come from otelhttp: the API server wraps its router and the SWM
// client wraps its transport, so one trace covers an inbound request and the
// SWM calls it triggers.
package telemetry
