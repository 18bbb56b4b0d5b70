package store

import (
	"context"
	"sort"
	"sync"

	"github.com/openedx/edxoffline/internal/domain"
)

// MemoryStore is a non-durable backend for tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]domain.DownloadRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]domain.DownloadRecord)}
}

func (m *MemoryStore) Upsert(_ context.Context, recs ...domain.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.recs[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (domain.DownloadRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recs[id]
	return r, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.recs, id)
	}
	return nil
}

func (m *MemoryStore) All(_ context.Context) ([]domain.DownloadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.DownloadRecord, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
