// Package errlog keeps a bounded log of recent pipeline errors for the
// status API. Entries carry free-text detail that never reaches the sheet.
package errlog

import (
	"context"
	"sync"
	"time"
)

// Entry is one recorded error.
type Entry struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// Log is the shared contract of the memory and Redis implementations.
// Add never fails the caller; Recent returns newest entries first.
type Log interface {
	Add(ctx context.Context, source, message string)
	Recent(ctx context.Context) ([]Entry, error)
}

// Memory is a fixed-capacity ring buffer. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	now     func() time.Time
}

// NewMemory creates a ring holding at most capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 100
	}
	return &Memory{entries: make([]Entry, capacity), now: time.Now}
}

func (m *Memory) Add(_ context.Context, source, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = Entry{Time: m.now().UTC(), Source: source, Message: message}
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
}

// Recent returns a copy of the buffered entries, newest first.
func (m *Memory) Recent(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}
