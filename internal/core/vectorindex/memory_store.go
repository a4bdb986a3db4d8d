package vectorindex

import (
	"context"
	"sync"

	"github.com/markdave123-py/docqa/internal/core"
)

// MemoryStore keeps entries in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[core.ScopeID][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[core.ScopeID][]Entry)}
}

func (m *MemoryStore) Replace(_ context.Context, scope core.ScopeID, entries []Entry) error {
	cp := make([]Entry, len(entries))
	for i, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		cp[i] = e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(cp) == 0 {
		delete(m.scopes, scope)
		return nil
	}
	m.scopes[scope] = cp
	return nil
}

func (m *MemoryStore) Query(_ context.Context, scope core.ScopeID, vec []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	entries := m.scopes[scope]
	hits := make([]Hit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, Hit{
			EntryID: e.ID,
			Seq:     e.Seq,
			Text:    e.Text,
			Score:   cosine(vec, e.Embedding),
		})
	}
	m.mu.RUnlock()

	rank(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) DeleteScope(_ context.Context, scope core.ScopeID) error {
	m.mu.Lock()
	delete(m.scopes, scope)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Count(_ context.Context, scope core.ScopeID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scopes[scope]), nil
}

func (m *MemoryStore) Close() error { return nil }
