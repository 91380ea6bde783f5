package service

import (
	"errors"

	"github.com/okian/tempoguard/internal/domain/check"
	"github.com/okian/tempoguard/internal/domain/engine"
	"github.com/okian/tempoguard/internal/domain/normalize"
)

// Sentinel errors returned by the service. Adapters map them to their own status codes.
var (
	ErrBackpressure        = errors.New("participant queue is full")
	ErrStopped             = errors.New("service stopped")
	ErrInvalidParticipant  = errors.New("invalid participant id")
	ErrPersistenceDisabled = errors.New("persistence is disabled")

	ErrMalformed          = normalize.ErrMalformed
	ErrUnknownParticipant = engine.ErrUnknownParticipant
	ErrUnknownCheck       = check.ErrUnknownCheck
)
