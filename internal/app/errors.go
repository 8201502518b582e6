package service

import "errors"

// Sentinel errors returned by the service commands.
var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrNoRecord     = errors.New("player has no record for this variant")
	ErrNoRespawn    = errors.New("player has not reached a checkpoint")
)
