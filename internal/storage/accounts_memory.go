package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"cloudtrim/internal/domain"
)

func (m *MemoryStore) CreateAccount(_ context.Context, in domain.CreateCloudAccount) (domain.CloudAccount, error) {
	if in.Name == "" {
		return domain.CloudAccount{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Provider == "" {
		return domain.CloudAccount{}, fmt.Errorf("%w: provider is required", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Name == in.Name {
			return domain.CloudAccount{}, fmt.Errorf("%w: account name %q already registered", ErrConflict, in.Name)
		}
	}

	now := time.Now().UTC()
	acct := domain.CloudAccount{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Provider:    in.Provider,
		Credentials: in.Credentials,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.accounts[acct.ID] = acct
	return acct, nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (*domain.CloudAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) ListAccounts(_ context.Context) ([]domain.CloudAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.CloudAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}
