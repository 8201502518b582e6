package api

import "errors"

// ErrBadRequest marks a request the transport could not decode.
var ErrBadRequest = errors.New("bad request")
