package normalize

import "errors"

// ErrMalformed marks raw input that cannot become an event. Callers log and drop it.
var ErrMalformed = errors.New("malformed raw event")
