package api

import (
	"errors"
	"net/http"

	service "github.com/okian/tempoguard/internal/app"
)

// ErrBadRequest marks request bodies or parameters that cannot be decoded.
var ErrBadRequest = errors.New("bad request")

// statusFor maps service errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrMalformed),
		errors.Is(err, service.ErrInvalidParticipant):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownParticipant),
		errors.Is(err, service.ErrUnknownCheck):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrPersistenceDisabled):
		return http.StatusNotImplemented, "persistence_disabled"
	case errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable, "stopped"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
