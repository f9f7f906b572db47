//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

const jobColumns = `id, account_id, kind, category, status, error_message, created_at, started_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (domain.Job, error) {
	var j domain.Job
	var kind, category, status, created string
	var started, completed sql.NullString
	err := row.Scan(&j.ID, &j.AccountID, &kind, &category, &status, &j.ErrorMessage, &created, &started, &completed)
	if err != nil {
		return domain.Job{}, err
	}
	j.Kind = domain.JobKind(kind)
	j.Category = domain.Category(category)
	j.Status = domain.JobStatus(status)
	if t, e := time.Parse(time.RFC3339, created); e == nil {
		j.CreatedAt = t
	}
	if started.Valid {
		if t, e := time.Parse(time.RFC3339, started.String); e == nil {
			j.StartedAt = &t
		}
	}
	if completed.Valid {
		if t, e := time.Parse(time.RFC3339, completed.String); e == nil {
			j.CompletedAt = &t
		}
	}
	return j, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *Store) CreateJob(ctx context.Context, job domain.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(`+jobColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.AccountID, string(job.Kind), string(job.Category), string(job.Status),
		job.ErrorMessage, job.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(job.StartedAt), nullTime(job.CompletedAt))
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (s *Store) UpdateJob(ctx context.Context, job domain.Job) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status=?, error_message=?, started_at=?, completed_at=? WHERE id=?`,
		string(job.Status), job.ErrorMessage, nullTime(job.StartedAt), nullTime(job.CompletedAt), job.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, accountID string) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE account_id=? ORDER BY rowid DESC`, accountID)
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
