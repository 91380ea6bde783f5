package cluster

import "errors"

// Sentinel errors.
var (
	ErrMalformedVerdict = errors.New("malformed verdict")
	ErrTransportClosed  = errors.New("transport closed")
)
