package store

import (
	"context"
	"sort"
	"sync"

	"github.com/opswatch/coalmine/internal/canary"
)

// MemStore is an in-memory Store, the Go analogue of the source's
// memory_store.py: a map guarded by one mutex, every entry deep-copied in
// and out. Grounded on the teacher's FileJobStorage (map-of-pointers
// protected by a sync.Mutex), adapted here to the canary domain with a
// slug secondary index instead of a single JSON file on disk.
type MemStore struct {
	mu        sync.Mutex
	byID      map[string]*canary.Canary
	slugToID  map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:     make(map[string]*canary.Canary),
		slugToID: make(map[string]string),
	}
}

func (m *MemStore) Create(_ context.Context, c *canary.Canary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[c.ID]; exists {
		return ErrCollision
	}
	if _, exists := m.slugToID[c.Slug]; exists {
		return ErrCollision
	}
	stored := c.Clone()
	m.byID[stored.ID] = stored
	m.slugToID[stored.Slug] = stored.ID
	return nil
}

func (m *MemStore) Update(_ context.Context, id string, patch canary.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := patch.Name.IsSet(); ok {
		c.Name = v
	}
	if v, ok := patch.Slug.IsSet(); ok {
		if existing, exists := m.slugToID[v]; exists && existing != id {
			return ErrCollision
		}
		delete(m.slugToID, c.Slug)
		c.Slug = v
		m.slugToID[v] = id
	}
	if v, ok := patch.Description.IsSet(); ok {
		c.Description = v
	}
	if v, ok := patch.Periodicity.IsSet(); ok {
		c.Periodicity = v
	}
	if v, ok := patch.Emails.IsSet(); ok {
		c.Emails = append([]string(nil), v...)
	}
	if v, ok := patch.Paused.IsSet(); ok {
		c.Paused = v
	}
	if v, ok := patch.Late.IsSet(); ok {
		c.Late = v
	}
	if v, ok := patch.Deadline.IsSet(); ok {
		c.Deadline = v
		c.HasDeadline = true
	} else if patch.Deadline.IsClear() {
		c.HasDeadline = false
	}
	if v, ok := patch.History.IsSet(); ok {
		c.History = append([]canary.HistoryEntry(nil), v...)
	}
	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (*canary.Canary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MemStore) List(_ context.Context, filter ListFilter) ([]*canary.Canary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*canary.Canary
	for _, c := range m.byID {
		if filter.matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpcomingDeadlines(_ context.Context) ([]*canary.Canary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*canary.Canary
	for _, c := range m.byID {
		if !c.Paused && !c.Late && c.HasDeadline {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.slugToID, c.Slug)
	delete(m.byID, id)
	return nil
}

func (m *MemStore) FindIdentifier(_ context.Context, slug string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.slugToID[slug]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *MemStore) Close() error { return nil }
