package watermilltransport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/okian/tempoguard/pkg/logger"
)

// loggerAdapter routes watermill logs into the process logger.
type loggerAdapter struct {
	log logger.Logger
}

// NewLogger adapts l to watermill.LoggerAdapter.
func NewLogger(l logger.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{log: l}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(context.Background(), msg, append(toFields(fields), logger.Error(err))...)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(context.Background(), msg, toFields(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, toFields(fields)...)
}

// Trace is folded into debug; the process logger has no lower level.
func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, toFields(fields)...)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{log: a.log.With(toFields(fields)...)}
}

func toFields(fields watermill.LogFields) []logger.Field {
	out := make([]logger.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, logger.Any(k, v))
	}
	return out
}
