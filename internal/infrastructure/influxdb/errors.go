package influxdb

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")

	// ErrWriteFailed wraps every error delivered to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
