package mqtt

import "errors"

// Errors returned by the client. Check with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")

	// ErrInvalidQoS rejects levels other than 0, 1 and 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
