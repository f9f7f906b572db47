//go:build postgres

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

const snapshotColumns = `id, account_id, category, name, collected_at, total_price, findings`

func scanSnapshot(row pgx.Row) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var category string
	var findings []byte
	err := row.Scan(&snap.ID, &snap.AccountID, &category, &snap.Name,
		&snap.CollectedAt, &snap.TotalPrice, &findings)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Category = domain.Category(category)
	if len(findings) > 0 {
		if err := json.Unmarshal(findings, &snap.Findings); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode findings for snapshot %s: %w", snap.ID, err)
		}
	}
	return snap, nil
}

// ReplaceSnapshot deletes the pair's previous snapshots and inserts the new
// one inside one transaction.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if snap.AccountID == "" || snap.Category == "" {
		return fmt.Errorf("%w: account_id and category are required", storage.ErrValidation)
	}
	findings, err := json.Marshal(snap.Findings)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM snapshots WHERE account_id=$1 AND category=$2`,
		snap.AccountID, string(snap.Category)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots(`+snapshotColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.AccountID, string(snap.Category), snap.Name,
		snap.CollectedAt.UTC(), snap.TotalPrice, findings); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) LatestSnapshot(ctx context.Context, accountID string, category domain.Category) (*domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE account_id=$1 AND category=$2 ORDER BY seq DESC LIMIT 1`,
		accountID, string(category))
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (s *Store) LatestSnapshots(ctx context.Context, accountID string) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (category) `+snapshotColumns+`
		 FROM snapshots WHERE account_id=$1
		 ORDER BY category, seq DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest first across categories.
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt.After(out[j].CollectedAt) })
	return out, nil
}

func (s *Store) DeleteSnapshots(ctx context.Context, accountID string, category domain.Category) error {
	if category == "" {
		_, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE account_id=$1`, accountID)
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE account_id=$1 AND category=$2`,
		accountID, string(category))
	return err
}
