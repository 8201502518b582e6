package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrVariantNotFound    = errors.New("variant not found")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrVariantExists      = errors.New("variant already exists")
	ErrCheckpointExists   = errors.New("checkpoint index already exists")
	ErrInvalidVariant     = errors.New("invalid variant")
	ErrInvalidCheckpoint  = errors.New("invalid checkpoint")
	ErrMalformedDocument  = errors.New("malformed document")
)
