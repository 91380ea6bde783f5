package state

import (
	"hash/fnv"
	"sync"
)

const (
	defaultShards     = 32
	defaultRingSize   = 20
	defaultMaxActions = 8
)

// Option configures a Store.
type Option func(*Store)

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithRingSize sets the per-action timestamp capacity.
func WithRingSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.ringSize = n
		}
	}
}

// WithMaxTrackedActions caps distinct action types per participant.
func WithMaxTrackedActions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxActions = n
		}
	}
}

type shard struct {
	mu    sync.RWMutex
	items map[string]*Participant
}

// Store maps participant ids to live state. The map is safe for concurrent use;
// a Participant it returns is not, and belongs to its serialization point.
type Store struct {
	shards     []*shard
	shardCount int
	ringSize   int
	maxActions int
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{shardCount: defaultShards, ringSize: defaultRingSize, maxActions: defaultMaxActions}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]*Participant)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Connect creates state for id. A duplicate connect returns the live state and false.
func (s *Store) Connect(id string, now int64) (*Participant, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if p, ok := sh.items[id]; ok {
		return p, false
	}
	p := newParticipant(id, now, s.ringSize, s.maxActions)
	sh.items[id] = p
	return p, true
}

// Get returns the live state for id.
func (s *Store) Get(id string) (*Participant, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	p, ok := sh.items[id]
	return p, ok
}

// Disconnect removes and returns the state for id.
func (s *Store) Disconnect(id string) (*Participant, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	p, ok := sh.items[id]
	if ok {
		delete(sh.items, id)
	}
	return p, ok
}

// Len returns the number of live participants.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// IDs returns the ids of live participants in no particular order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id := range sh.items {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	return ids
}
