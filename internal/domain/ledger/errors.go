package ledger

import "errors"

// ErrUnknownDecay is returned for an unsupported decay function name.
var ErrUnknownDecay = errors.New("unknown decay function")
