package check

import "errors"

// Sentinel errors for registry and construction.
var (
	ErrRegistryFrozen = errors.New("check registry is frozen")
	ErrDuplicateCheck = errors.New("check id already registered")
	ErrUnknownCheck   = errors.New("unknown check id")
)
