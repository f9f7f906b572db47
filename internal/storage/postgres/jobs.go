//go:build postgres

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

const jobColumns = `id, account_id, kind, category, status, error_message, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var kind, category, status string
	err := row.Scan(&j.ID, &j.AccountID, &kind, &category, &status,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return domain.Job{}, err
	}
	j.Kind = domain.JobKind(kind)
	j.Category = domain.Category(category)
	j.Status = domain.JobStatus(status)
	return j, nil
}

func (s *Store) CreateJob(ctx context.Context, job domain.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs(`+jobColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.AccountID, string(job.Kind), string(job.Category), string(job.Status),
		job.ErrorMessage, job.CreatedAt.UTC(), job.StartedAt, job.CompletedAt)
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (s *Store) UpdateJob(ctx context.Context, job domain.Job) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status=$1, error_message=$2, started_at=$3, completed_at=$4 WHERE id=$5`,
		string(job.Status), job.ErrorMessage, job.StartedAt, job.CompletedAt, job.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, accountID string) ([]domain.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE account_id=$1 ORDER BY seq DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
