package engine

import "errors"

// Sentinel errors.
var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownTask        = errors.New("unknown task kind")
)
