package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
)

const (
	defaultMaxWorkers = 4
	defaultJobTimeout = 30 * time.Minute
)

// Orchestrator runs scans and remediations in the background, bounded by a
// worker semaphore, and exposes each run as a queryable Job.
type Orchestrator struct {
	manager *Manager
	jobs    storage.JobStore
	logger  observability.Logger
	metrics *observability.Metrics
	sem     *semaphore.Weighted
	timeout time.Duration

	// rescanBeforeRemediate refreshes each category's snapshot before
	// remediating it, trading cheap remediation for staleness safety.
	rescanBeforeRemediate bool
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Manager *Manager
	Jobs    storage.JobStore
	Logger  observability.Logger
	Metrics *observability.Metrics
	// MaxWorkers bounds concurrent background runs. Zero means 4.
	MaxWorkers int64
	// JobTimeout bounds one background run. Zero means 30 minutes.
	JobTimeout time.Duration
	// RescanBeforeRemediate runs a fresh scan per category before its
	// remediation instead of trusting the stored snapshot.
	RescanBeforeRemediate bool
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Orchestrator{
		manager:               opts.Manager,
		jobs:                  opts.Jobs,
		logger:                logger.WithComponent("orchestrator"),
		metrics:               opts.Metrics,
		sem:                   semaphore.NewWeighted(workers),
		timeout:               timeout,
		rescanBeforeRemediate: opts.RescanBeforeRemediate,
	}
}

// ScanAccount starts a background scan of one category, or all categories
// when category is empty, and returns the pending Job. Resolution errors
// (ErrInvalidAccountID, ErrAccountNotFound, ErrUnknownCategory) surface
// synchronously and create no job.
func (o *Orchestrator) ScanAccount(ctx context.Context, accountID string, category domain.Category) (*domain.Job, error) {
	return o.dispatch(ctx, accountID, category, domain.JobKindScan)
}

// RemediateAccount starts a background remediation with the same contract as
// ScanAccount.
func (o *Orchestrator) RemediateAccount(ctx context.Context, accountID string, category domain.Category) (*domain.Job, error) {
	return o.dispatch(ctx, accountID, category, domain.JobKindRemediate)
}

func (o *Orchestrator) dispatch(ctx context.Context, accountID string, category domain.Category, kind domain.JobKind) (*domain.Job, error) {
	sess, err := o.manager.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}
	strategies, err := o.manager.Strategies(sess, category)
	if err != nil {
		return nil, err
	}

	job := domain.Job{
		ID:        uuid.NewString(),
		AccountID: sess.AccountID,
		Kind:      kind,
		Category:  category,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	// The run outlives the request: detach from its cancellation but keep
	// its values, and bound the run with the job timeout.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	go func() {
		defer cancel()
		o.run(bg, job, strategies)
	}()

	return &job, nil
}

func (o *Orchestrator) run(ctx context.Context, job domain.Job, strategies []Strategy) {
	if o.metrics != nil {
		o.metrics.IncrementActiveJobs()
		defer o.metrics.DecrementActiveJobs()
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.failJob(ctx, job, fmt.Errorf("acquire worker: %w", err))
		return
	}
	defer o.sem.Release(1)

	now := time.Now().UTC()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.logger.ErrorContext(ctx, "update job failed", "job_id", job.ID, "error", err)
	}

	var failures []string
	for _, strat := range strategies {
		err := o.runStrategy(ctx, job.Kind, strat)
		if o.metrics != nil {
			o.metrics.RecordStrategyRun(string(job.Kind), string(strat.Category()), err)
		}
		if err != nil {
			o.logger.ErrorContext(ctx, "strategy run failed",
				"job_id", job.ID, "kind", job.Kind, "category", strat.Category(), "error", err)
			sentry.CaptureException(err)
			failures = append(failures, fmt.Sprintf("%s: %v", strat.Category(), err))
		}
	}

	done := time.Now().UTC()
	job.CompletedAt = &done
	if len(failures) > 0 {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = strings.Join(failures, "; ")
	} else {
		job.Status = domain.JobStatusCompleted
	}
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.logger.ErrorContext(ctx, "update job failed", "job_id", job.ID, "error", err)
	}

	o.logger.InfoContext(ctx, "job finished",
		"job_id", job.ID, "kind", job.Kind, "status", job.Status,
		"duration", done.Sub(job.CreatedAt).String())
}

func (o *Orchestrator) runStrategy(ctx context.Context, kind domain.JobKind, strat Strategy) error {
	switch kind {
	case domain.JobKindRemediate:
		if o.rescanBeforeRemediate {
			if err := strat.Scan(ctx); err != nil {
				return fmt.Errorf("rescan before remediate: %w", err)
			}
		}
		return strat.Remediate(ctx)
	default:
		return strat.Scan(ctx)
	}
}

func (o *Orchestrator) failJob(ctx context.Context, job domain.Job, cause error) {
	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.logger.ErrorContext(ctx, "update job failed", "job_id", job.ID, "error", err)
	}
}
