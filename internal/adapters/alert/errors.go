package alert

import "errors"

// Sentinel errors.
var (
	ErrWebhookStatus = errors.New("webhook returned error status")
	ErrUnknownFormat = errors.New("unknown webhook format")
)
