package docstore

import "errors"

// Sentinel errors for document storage.
var (
	ErrStorage         = errors.New("document storage failure")
	ErrInvalidKey      = errors.New("invalid document key")
	ErrInvalidDocument = errors.New("invalid document")
	ErrClosed          = errors.New("document store closed")
)
