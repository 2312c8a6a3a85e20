package batch

import (
	"sync"

	"github.com/lepinkainen/tankobon/internal/metadata"
)

const defaultMemoSize = 256

type memoKey struct {
	series string
	number int
}

// memo holds prefetched volumes until a lookup consumes them. When full it
// is cleared rather than evicting entry by entry.
type memo struct {
	mu      sync.Mutex
	entries map[memoKey]*metadata.Volume
	limit   int
}

func newMemo(limit int) *memo {
	return &memo{entries: make(map[memoKey]*metadata.Volume), limit: limit}
}

func (m *memo) put(series string, number int, v *metadata.Volume) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.limit {
		clear(m.entries)
	}
	m.entries[memoKey{series, number}] = v
}

func (m *memo) take(series string, number int) *metadata.Volume {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoKey{series, number}
	v, ok := m.entries[k]
	if !ok {
		return nil
	}
	delete(m.entries, k)
	return v
}

func (m *memo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
