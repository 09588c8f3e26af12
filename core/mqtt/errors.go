package mqtt

import "errors"

var (
	// ErrNotConnected is returned when publishing while the broker link is down.
	ErrNotConnected = errors.New("mqtt client not connected")
	// ErrInvalidTopic is returned when a shelf id cannot be parsed from a topic.
	ErrInvalidTopic = errors.New("invalid shelf topic")
)
