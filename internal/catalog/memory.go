package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bsipocz/gammapy/internal/irf"
)

// Memory is a Catalog held in process memory.
type Memory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
	now     func() time.Time
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{records: make(map[uuid.UUID]*Record), now: time.Now}
}

func (m *Memory) Save(_ context.Context, name string, meta irf.ARFMeta, t *irf.EffectiveAreaTable) (Entry, error) {
	rec, err := newRecord(name, meta, t, m.now())
	if err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return rec.Entry, nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.Data = append([]byte(nil), rec.Data...)
	return &out, nil
}

// List returns all entries, oldest first.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	entries := make([]Entry, 0, len(m.records))
	for _, rec := range m.records {
		entries = append(entries, rec.Entry)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}
