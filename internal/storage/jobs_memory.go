package storage

import (
	"context"
	"fmt"
	"sort"

	"cloudtrim/internal/domain"
)

func (m *MemoryStore) CreateJob(_ context.Context, job domain.Job) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job id is required", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: job %s already exists", ErrConflict, job.ID)
	}
	m.jobSeq++
	m.jobs[job.ID] = memJob{seq: m.jobSeq, job: job}
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	job := j.job
	return &job, nil
}

func (m *MemoryStore) UpdateJob(_ context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	existing.job = job
	m.jobs[job.ID] = existing
	return nil
}

func (m *MemoryStore) ListJobs(_ context.Context, accountID string) ([]domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var picked []memJob
	for _, j := range m.jobs {
		if j.job.AccountID == accountID {
			picked = append(picked, j)
		}
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].seq > picked[j].seq })

	out := make([]domain.Job, 0, len(picked))
	for _, j := range picked {
		out = append(out, j.job)
	}
	return out, nil
}
