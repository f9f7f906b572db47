package storage

import (
	"context"
	"fmt"
	"sort"

	"cloudtrim/internal/domain"
)

func (m *MemoryStore) ReplaceSnapshot(_ context.Context, snap domain.Snapshot) error {
	if snap.AccountID == "" || snap.Category == "" {
		return fmt.Errorf("%w: account_id and category are required", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.snapshots[:0]
	for _, s := range m.snapshots {
		if s.snap.AccountID == snap.AccountID && s.snap.Category == snap.Category {
			continue
		}
		kept = append(kept, s)
	}
	m.snapshots = kept

	m.seq++
	m.snapshots = append(m.snapshots, memSnapshot{seq: m.seq, snap: snap})
	return nil
}

func (m *MemoryStore) LatestSnapshot(_ context.Context, accountID string, category domain.Category) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *memSnapshot
	for i := range m.snapshots {
		s := &m.snapshots[i]
		if s.snap.AccountID != accountID || s.snap.Category != category {
			continue
		}
		if best == nil || s.seq > best.seq {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	snap := best.snap
	return &snap, nil
}

func (m *MemoryStore) LatestSnapshots(_ context.Context, accountID string) ([]domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[domain.Category]memSnapshot)
	for _, s := range m.snapshots {
		if s.snap.AccountID != accountID {
			continue
		}
		if cur, ok := latest[s.snap.Category]; !ok || s.seq > cur.seq {
			latest[s.snap.Category] = s
		}
	}

	picked := make([]memSnapshot, 0, len(latest))
	for _, s := range latest {
		picked = append(picked, s)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].seq > picked[j].seq })

	out := make([]domain.Snapshot, 0, len(picked))
	for _, s := range picked {
		out = append(out, s.snap)
	}
	return out, nil
}

func (m *MemoryStore) DeleteSnapshots(_ context.Context, accountID string, category domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.snapshots[:0]
	for _, s := range m.snapshots {
		if s.snap.AccountID == accountID && (category == "" || s.snap.Category == category) {
			continue
		}
		kept = append(kept, s)
	}
	m.snapshots = kept
	return nil
}

// SnapshotCount returns the number of stored snapshots for an account,
// across all categories. Test helper.
func (m *MemoryStore) SnapshotCount(accountID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.snapshots {
		if s.snap.AccountID == accountID {
			n++
		}
	}
	return n
}
