//go:build postgres

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

func (s *Store) UpsertSchedule(ctx context.Context, sched domain.Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schedules(account_id, interval_hours, created_at, updated_at) VALUES($1, $2, $3, $4)
		 ON CONFLICT(account_id) DO UPDATE SET interval_hours=EXCLUDED.interval_hours, updated_at=EXCLUDED.updated_at`,
		sched.AccountID, sched.IntervalHours, now, now)
	return err
}

func (s *Store) GetSchedule(ctx context.Context, accountID string) (*domain.Schedule, error) {
	var sched domain.Schedule
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, interval_hours, created_at, updated_at FROM schedules WHERE account_id=$1`,
		accountID).Scan(&sched.AccountID, &sched.IntervalHours, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &sched, nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, interval_hours, created_at, updated_at FROM schedules ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Schedule
	for rows.Next() {
		var sched domain.Schedule
		if err := rows.Scan(&sched.AccountID, &sched.IntervalHours, &sched.CreatedAt, &sched.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSchedule(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE account_id=$1`, accountID)
	return err
}
