package triage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.RWMutex
	cases   map[uuid.UUID]*Case
	history map[uuid.UUID][]*StatusChange
}

// NewMemoryStore returns a Store that keeps everything in process memory.
func NewMemoryStore() Store {
	return &memoryStore{
		cases:   make(map[uuid.UUID]*Case),
		history: make(map[uuid.UUID][]*StatusChange),
	}
}

func (m *memoryStore) Save(_ context.Context, c *Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c.Clone()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (*Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cases, id)
	delete(m.history, id)
	return nil
}

func (m *memoryStore) ListActive(_ context.Context) ([]*Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Case, 0, len(m.cases))
	for _, c := range m.cases {
		if c.Status.Active() {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *memoryStore) ListByPatient(_ context.Context, patientRef string, limit, offset int) ([]*Case, int, error) {
	m.mu.RLock()
	var all []*Case
	for _, c := range m.cases {
		if c.PatientRef == patientRef {
			all = append(all, c.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return []*Case{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memoryStore) AddStatusChange(_ context.Context, h *StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	cp := *h
	m.history[h.CaseID] = append(m.history[h.CaseID], &cp)
	return nil
}

func (m *memoryStore) StatusHistory(_ context.Context, caseID uuid.UUID) ([]*StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StatusChange, 0, len(m.history[caseID]))
	for _, h := range m.history[caseID] {
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

// InTx runs fn directly. Memory writes cannot fail halfway, and callers
// already serialise writers.
func (m *memoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
