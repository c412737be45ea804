package pubsub

import "errors"

var (
	// ErrNatsConnClosed is returned when publishing is attempted on a closed
	// or never-opened connection.
	ErrNatsConnClosed = errors.New("nats connection is closed")
)
