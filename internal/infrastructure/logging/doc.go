// Package logging provides the structured logger used across the service.
//
// It is a thin layer over log/slog: New picks the handler (JSON or text),
// level and destination from config.LoggingConfig and stamps every record
// with the service name and build version. Components derive child loggers
// with With("component", name).
package logging
