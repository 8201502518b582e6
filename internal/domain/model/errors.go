package model

import "errors"

// Sentinel errors for field/value edits.
var (
	ErrInvalidField = errors.New("invalid field")
	ErrInvalidValue = errors.New("invalid value")
)
