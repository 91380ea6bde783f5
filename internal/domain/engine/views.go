package engine

import (
	"sort"
	"sync"

	"github.com/okian/tempoguard/internal/domain/model"
)

// viewTable publishes read-only participant summaries for readers outside
// the serialization points.
type viewTable struct {
	mu    sync.RWMutex
	items map[string]model.ParticipantView
}

func newViewTable() *viewTable {
	return &viewTable{items: make(map[string]model.ParticipantView)}
}

func (t *viewTable) put(v model.ParticipantView) {
	sort.Slice(v.Checks, func(i, j int) bool { return v.Checks[i].CheckID < v.Checks[j].CheckID })
	t.mu.Lock()
	t.items[v.ParticipantID] = v
	t.mu.Unlock()
}

func (t *viewTable) delete(id string) {
	t.mu.Lock()
	delete(t.items, id)
	t.mu.Unlock()
}

func (t *viewTable) get(id string) (model.ParticipantView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[id]
	return v, ok
}

func (t *viewTable) each(fn func(model.ParticipantView)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, v := range t.items {
		fn(v)
	}
}
