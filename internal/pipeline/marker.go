package pipeline

import (
	"sync"

	"github.com/ignite/eventpass/internal/domain"
)

// Marker is the set of identities already dispatched during this run. It is
// never persisted; a restart begins with an empty marker.
type Marker struct {
	mu   sync.Mutex
	seen map[domain.Identity]struct{}
}

// NewMarker returns an empty marker.
func NewMarker() *Marker {
	return &Marker{seen: make(map[domain.Identity]struct{})}
}

// Seen reports whether id was marked.
func (m *Marker) Seen(id domain.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[id]
	return ok
}

// Mark adds id to the set.
func (m *Marker) Mark(id domain.Identity) {
	m.mu.Lock()
	m.seen[id] = struct{}{}
	m.mu.Unlock()
}

// Len returns the number of marked identities.
func (m *Marker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
