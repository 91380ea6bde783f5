package engine

import (
	"container/list"
	"sync"

	"github.com/okian/tempoguard/internal/domain/model"
)

// VerdictBook remembers the strongest known verdict per (participant, check),
// including for participants not connected here, so a reconnect resumes at the
// cluster-known level. It is bounded: the participant observed least recently is forgotten first.
type VerdictBook struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	size    int
}

type bookEntry struct {
	participantID string
	checks        map[string]model.ClusterVerdict
}

// NewVerdictBook creates a book holding at most size participants.
func NewVerdictBook(size int) *VerdictBook {
	if size < 1 {
		size = 1
	}
	return &VerdictBook{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		size:    size,
	}
}

// Observe stores v when it supersedes what is known and marks the participant
// as recently observed. It reports whether the book changed.
func (b *VerdictBook) Observe(v model.ClusterVerdict) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.entries[v.ParticipantID]
	if ok {
		b.lru.MoveToFront(el)
	} else {
		el = b.admit(v.ParticipantID)
	}
	checks := el.Value.(*bookEntry).checks
	if cur, ok := checks[v.CheckID]; ok && !v.Supersedes(cur.Epoch, cur.EscalationLevel) {
		return false
	}
	checks[v.CheckID] = v
	return true
}

// admit adds id at the front, evicting the least recently observed participant
// when full. Caller holds mu.
func (b *VerdictBook) admit(id string) *list.Element {
	if b.lru.Len() >= b.size {
		if oldest := b.lru.Back(); oldest != nil {
			b.lru.Remove(oldest)
			delete(b.entries, oldest.Value.(*bookEntry).participantID)
		}
	}
	el := b.lru.PushFront(&bookEntry{participantID: id, checks: make(map[string]model.ClusterVerdict)})
	b.entries[id] = el
	return el
}

// For returns copies of the known verdicts of a participant.
func (b *VerdictBook) For(participantID string) []model.ClusterVerdict {
	b.mu.Lock()
	defer b.mu.Unlock()
	el, ok := b.entries[participantID]
	if !ok {
		return []model.ClusterVerdict{}
	}
	checks := el.Value.(*bookEntry).checks
	out := make([]model.ClusterVerdict, 0, len(checks))
	for _, v := range checks {
		out = append(out, v)
	}
	return out
}

// Get returns the known verdict for one record.
func (b *VerdictBook) Get(participantID, checkID string) (model.ClusterVerdict, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	el, ok := b.entries[participantID]
	if !ok {
		return model.ClusterVerdict{}, false
	}
	v, ok := el.Value.(*bookEntry).checks[checkID]
	return v, ok
}

// Len returns the number of participants remembered.
func (b *VerdictBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
