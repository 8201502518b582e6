package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed = errors.New("effect queue closed")
	ErrFull   = errors.New("effect queue full")
)
