// Package dedupe suppresses repeated deliveries of the same platform event.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen delivery keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so a rejected delivery (e.g. backpressure) can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int
}

// Key joins a participant id and a delivery id. Delivery ids are only unique per participant.
func Key(participantID, deliveryID string) string {
	return participantID + "\x00" + deliveryID
}

type slot struct {
	key string
	seq uint64
}

// inMemoryDeduper keeps the most recent maxSize keys and evicts the oldest first.
// Eviction is O(1): slots form a ring and a slot only evicts the key it still owns.
// With maxSize <= 0 it remembers nothing and reports every key as new.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	ring    []slot
	next    int
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]slot, d.maxSize)
	}
	return d
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	if d.maxSize <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	d.seq++
	old := d.ring[d.next]
	if old.seq != 0 && d.seen[old.key] == old.seq {
		delete(d.seen, old.key)
	}
	d.ring[d.next] = slot{key: key, seq: d.seq}
	d.next = (d.next + 1) % d.maxSize
	d.seen[key] = d.seq
	return false
}

// Unrecord removes a key from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// Size returns the current number of remembered keys.
func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
