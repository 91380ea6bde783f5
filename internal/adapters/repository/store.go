// Package repository persists violation snapshots. Detection never waits on it:
// the Gateway queues snapshots and writes them from its own goroutine.
package repository

import (
	"context"

	"github.com/okian/tempoguard/internal/domain/model"
)

// Store is durable or in-memory snapshot storage.
type Store interface {
	// Record stores one snapshot.
	Record(ctx context.Context, snap model.ViolationSnapshot) error

	// History returns up to limit snapshots of a participant, newest first.
	// Returns ErrInvalidLimit when limit is not positive.
	History(ctx context.Context, participantID string, limit int) ([]model.ViolationSnapshot, error)

	// Close releases resources.
	Close() error
}
