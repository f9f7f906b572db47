//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

func (s *Store) UpsertSchedule(ctx context.Context, sched domain.Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(account_id, interval_hours, created_at, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET interval_hours=excluded.interval_hours, updated_at=excluded.updated_at`,
		sched.AccountID, sched.IntervalHours, now, now)
	return err
}

func (s *Store) GetSchedule(ctx context.Context, accountID string) (*domain.Schedule, error) {
	var sched domain.Schedule
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, interval_hours, created_at, updated_at FROM schedules WHERE account_id=?`,
		accountID).Scan(&sched.AccountID, &sched.IntervalHours, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if t, e := time.Parse(time.RFC3339, created); e == nil {
		sched.CreatedAt = t
	}
	if t, e := time.Parse(time.RFC3339, updated); e == nil {
		sched.UpdatedAt = t
	}
	return &sched, nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, interval_hours, created_at, updated_at FROM schedules ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Schedule
	for rows.Next() {
		var sched domain.Schedule
		var created, updated string
		if err := rows.Scan(&sched.AccountID, &sched.IntervalHours, &created, &updated); err != nil {
			return nil, err
		}
		if t, e := time.Parse(time.RFC3339, created); e == nil {
			sched.CreatedAt = t
		}
		if t, e := time.Parse(time.RFC3339, updated); e == nil {
			sched.UpdatedAt = t
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSchedule(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE account_id=?`, accountID)
	return err
}
