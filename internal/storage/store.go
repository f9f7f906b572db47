// Package storage provides storage interfaces and implementations for cloudtrim.
package storage

import (
	"context"
	"sync"

	"cloudtrim/internal/domain"
)

// AccountStore persists registered cloud accounts. Secret access keys are
// expected to be encrypted before they reach the store and decrypted after
// they leave it; the store treats them as opaque strings.
type AccountStore interface {
	// CreateAccount registers a new account and returns it with ID and
	// timestamps populated.
	CreateAccount(ctx context.Context, in domain.CreateCloudAccount) (domain.CloudAccount, error)

	// GetAccount returns the account with the given ID, or ErrNotFound.
	GetAccount(ctx context.Context, id string) (*domain.CloudAccount, error)

	// ListAccounts returns all registered accounts.
	ListAccounts(ctx context.Context) ([]domain.CloudAccount, error)

	// DeleteAccount removes the account. Returns ErrNotFound if absent.
	DeleteAccount(ctx context.Context, id string) error
}

// SnapshotStore is the persistence contract consumed by every recommendation
// strategy.
type SnapshotStore interface {
	// ReplaceSnapshot deletes all snapshots for snap's (account, category)
	// pair and inserts snap. Delete-then-insert ordering: after a successful
	// call the new snapshot is the only one for the pair, and a concurrent
	// reader observes either the previous snapshot or the new one.
	ReplaceSnapshot(ctx context.Context, snap domain.Snapshot) error

	// LatestSnapshot returns the most recently inserted snapshot for the
	// (account, category) pair, or ErrNotFound.
	LatestSnapshot(ctx context.Context, accountID string, category domain.Category) (*domain.Snapshot, error)

	// LatestSnapshots returns the latest snapshot per category for the
	// account, newest first. Categories never scanned are absent.
	LatestSnapshots(ctx context.Context, accountID string) ([]domain.Snapshot, error)

	// DeleteSnapshots bulk-deletes snapshots for the account. An empty
	// category deletes across all categories.
	DeleteSnapshots(ctx context.Context, accountID string, category domain.Category) error
}

// JobStore tracks background scan/remediation jobs.
type JobStore interface {
	// CreateJob persists a new job.
	CreateJob(ctx context.Context, job domain.Job) error

	// GetJob returns a job by ID, or ErrNotFound.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// UpdateJob overwrites an existing job row.
	UpdateJob(ctx context.Context, job domain.Job) error

	// ListJobs returns jobs for an account, newest first.
	ListJobs(ctx context.Context, accountID string) ([]domain.Job, error)
}

// ScheduleStore persists recurring scan registrations, keyed by account.
type ScheduleStore interface {
	// UpsertSchedule creates or replaces the schedule for sched.AccountID.
	UpsertSchedule(ctx context.Context, sched domain.Schedule) error

	// GetSchedule returns the schedule for an account, or ErrNotFound.
	GetSchedule(ctx context.Context, accountID string) (*domain.Schedule, error)

	// ListSchedules returns all schedules.
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)

	// DeleteSchedule removes an account's schedule. Deleting a missing
	// schedule is not an error.
	DeleteSchedule(ctx context.Context, accountID string) error
}

// Store combines every storage concern behind one handle so cmd can select a
// backend once.
type Store interface {
	AccountStore
	SnapshotStore
	JobStore
	ScheduleStore

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is an in-memory implementation for quick start and tests.
// All per-concern maps share one mutex.
type MemoryStore struct {
	mu sync.RWMutex

	accounts  map[string]domain.CloudAccount
	snapshots []memSnapshot
	seq       int64
	jobs      map[string]memJob
	jobSeq    int64
	schedules map[string]domain.Schedule
}

type memSnapshot struct {
	seq  int64
	snap domain.Snapshot
}

type memJob struct {
	seq int64
	job domain.Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]domain.CloudAccount),
		jobs:      make(map[string]memJob),
		schedules: make(map[string]domain.Schedule),
	}
}

var _ Store = (*MemoryStore)(nil)

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
