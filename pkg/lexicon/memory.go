package lexicon

import (
	"context"
	"iter"
	"sort"
	"sync"
)

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewMemory creates an empty in-memory store, optionally seeded with entries.
func NewMemory(entries ...Entry) *Memory {
	m := &Memory{data: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		m.data[e.Surface] = e
	}
	return m
}

func (m *Memory) Get(_ context.Context, surface string) (Entry, error) {
	m.mu.RLock()
	e, ok := m.data[surface]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Put(_ context.Context, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[e.Surface] = e
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, surface string) error {
	m.mu.Lock()
	delete(m.data, surface)
	m.mu.Unlock()
	return nil
}

func (m *Memory) All(_ context.Context) iter.Seq2[Entry, error] {
	m.mu.RLock()
	snapshot := make([]Entry, 0, len(m.data))
	for _, e := range m.data {
		snapshot = append(snapshot, e)
	}
	m.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Surface < snapshot[j].Surface
	})

	return func(yield func(Entry, error) bool) {
		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
