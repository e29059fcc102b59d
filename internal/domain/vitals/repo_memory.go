package vitals

import (
	"context"
	"sort"
	"sync"
)

type memoryRepo struct {
	mu        sync.RWMutex
	byPatient map[string][]*Record
}

func NewMemoryRepo() Repository {
	return &memoryRepo{byPatient: make(map[string][]*Record)}
}

func (m *memoryRepo) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.byPatient[r.PatientRef], r.clone())
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].RecordedAt.After(list[j].RecordedAt)
	})
	m.byPatient[r.PatientRef] = list
	return nil
}

func (m *memoryRepo) ListByPatient(_ context.Context, patientRef string, limit, offset int) ([]*Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byPatient[patientRef]
	total := len(list)
	if offset >= total {
		return []*Record{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*Record, 0, end-offset)
	for _, r := range list[offset:end] {
		out = append(out, r.clone())
	}
	return out, total, nil
}

func (m *memoryRepo) Latest(_ context.Context, patientRef string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byPatient[patientRef]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0].clone(), nil
}
