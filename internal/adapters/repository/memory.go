package repository

import (
	"context"
	"sync"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/ring"
)

const defaultHistoryLimit = 256

// MemoryStore keeps the most recent snapshots of each participant in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	limit  int
	byID   map[string]*ring.Ring[model.ViolationSnapshot]
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore keeps at most limit snapshots per participant.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &MemoryStore{limit: limit, byID: make(map[string]*ring.Ring[model.ViolationSnapshot])}
}

func (s *MemoryStore) Record(_ context.Context, snap model.ViolationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	r, ok := s.byID[snap.ParticipantID]
	if !ok {
		r = ring.New[model.ViolationSnapshot](s.limit)
		s.byID[snap.ParticipantID] = r
	}
	r.Push(snap)
	return nil
}

func (s *MemoryStore) History(_ context.Context, participantID string, limit int) ([]model.ViolationSnapshot, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[participantID]
	if !ok {
		return []model.ViolationSnapshot{}, nil
	}
	n := r.Len()
	if limit > n {
		limit = n
	}
	out := make([]model.ViolationSnapshot, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.At(i))
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
