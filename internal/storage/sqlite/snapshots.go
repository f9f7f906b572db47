//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

const snapshotColumns = `id, account_id, category, name, collected_at, total_price, findings`

func scanSnapshot(row interface{ Scan(...any) error }) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var category, collected string
	var findings []byte
	err := row.Scan(&snap.ID, &snap.AccountID, &category, &snap.Name, &collected, &snap.TotalPrice, &findings)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Category = domain.Category(category)
	if t, e := time.Parse(time.RFC3339, collected); e == nil {
		snap.CollectedAt = t
	}
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE account_id=? AND category=?`,
		snap.AccountID, string(snap.Category)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots(`+snapshotColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.AccountID, string(snap.Category), snap.Name,
		snap.CollectedAt.UTC().Format(time.RFC3339), snap.TotalPrice, string(findings)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) LatestSnapshot(ctx context.Context, accountID string, category domain.Category) (*domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE account_id=? AND category=? ORDER BY rowid DESC LIMIT 1`,
		accountID, string(category))
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (s *Store) LatestSnapshots(ctx context.Context, accountID string) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE account_id=? ORDER BY rowid DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[domain.Category]bool{}
	out := make([]domain.Snapshot, 0, len(domain.Categories))
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		if seen[snap.Category] {
			continue
		}
		seen[snap.Category] = true
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSnapshots(ctx context.Context, accountID string, category domain.Category) error {
	if category == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE account_id=?`, accountID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE account_id=? AND category=?`,
		accountID, string(category))
	return err
}
