package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloudtrim/internal/domain"
)

func (m *MemoryStore) UpsertSchedule(_ context.Context, sched domain.Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.schedules[sched.AccountID]; ok {
		sched.CreatedAt = existing.CreatedAt
	} else {
		sched.CreatedAt = now
	}
	sched.UpdatedAt = now
	m.schedules[sched.AccountID] = sched
	return nil
}

func (m *MemoryStore) GetSchedule(_ context.Context, accountID string) (*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) ListSchedules(_ context.Context) ([]domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *MemoryStore) DeleteSchedule(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.schedules, accountID)
	return nil
}
