package engine

import "errors"

// ErrTransition marks a transition whose result could not be persisted.
var ErrTransition = errors.New("transition not persisted")
