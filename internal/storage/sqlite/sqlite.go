//go:build sqlite

// Package sqlite implements storage.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"cloudtrim/internal/domain"
	"cloudtrim/internal/storage"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Status returns a migration state summary for the given DSN without
// creating a Store or running migrations.
func Status(dsn string) (string, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()
	var latest, count int
	_ = db.QueryRow(`SELECT COALESCE(MAX(version),0) FROM schema_migrations`).Scan(&latest)
	_ = db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&count)
	return fmt.Sprintf("applied=%d latest=%d", count, latest), nil
}

func (s *Store) CreateAccount(ctx context.Context, in domain.CreateCloudAccount) (domain.CloudAccount, error) {
	if in.Name == "" {
		return domain.CloudAccount{}, fmt.Errorf("%w: name is required", storage.ErrValidation)
	}
	if in.Provider == "" {
		return domain.CloudAccount{}, fmt.Errorf("%w: provider is required", storage.ErrValidation)
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts(id, name, provider, access_key_id, secret_access_key, role_arn, external_id, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Name, string(acct.Provider),
		acct.Credentials.AccessKeyID, acct.Credentials.SecretAccessKey,
		acct.Credentials.RoleARN, acct.Credentials.ExternalID,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.CloudAccount{}, fmt.Errorf("%w: account name %q already registered", storage.ErrConflict, in.Name)
		}
		return domain.CloudAccount{}, err
	}
	return acct, nil
}

const accountColumns = `id, name, provider, access_key_id, secret_access_key, role_arn, external_id, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.CloudAccount, error) {
	var a domain.CloudAccount
	var provider, created, updated string
	err := row.Scan(&a.ID, &a.Name, &provider,
		&a.Credentials.AccessKeyID, &a.Credentials.SecretAccessKey,
		&a.Credentials.RoleARN, &a.Credentials.ExternalID,
		&created, &updated)
	if err != nil {
		return domain.CloudAccount{}, err
	}
	a.Provider = domain.Provider(provider)
	if t, e := time.Parse(time.RFC3339, created); e == nil {
		a.CreatedAt = t
	}
	if t, e := time.Parse(time.RFC3339, updated); e == nil {
		a.UpdatedAt = t
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.CloudAccount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.CloudAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CloudAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
