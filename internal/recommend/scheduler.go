package recommend

import (
	"context"
	"sync"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
)

// Scanner triggers a background scan. Implemented by the Orchestrator.
type Scanner interface {
	ScanAccount(ctx context.Context, accountID string, category domain.Category) (*domain.Job, error)
}

// Scheduler drives recurring full-account scans. Registrations persist in the
// schedule store so tickers resume across restarts; one schedule per account,
// re-registration replaces the interval.
type Scheduler struct {
	store   storage.ScheduleStore
	scanner Scanner
	logger  observability.Logger

	// interval converts registered hours to a tick period. Overridable in
	// tests.
	interval func(hours int) time.Duration

	mu      sync.Mutex
	stops   map[string]chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

// NewScheduler creates a Scheduler. Call Start to resume persisted schedules.
func NewScheduler(store storage.ScheduleStore, scanner Scanner, logger observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Scheduler{
		store:   store,
		scanner: scanner,
		logger:  logger.WithComponent("scheduler"),
		interval: func(hours int) time.Duration {
			return time.Duration(hours) * time.Hour
		},
		stops: make(map[string]chan struct{}),
	}
}

// Start resumes tickers for every persisted schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range schedules {
		s.startLocked(sched.AccountID, sched.IntervalHours)
	}
	s.logger.InfoContext(ctx, "scheduler started", "schedules", len(schedules))
	return nil
}

// Register persists a recurring scan for the account and (re)starts its
// ticker. Re-registering replaces the existing interval.
func (s *Scheduler) Register(ctx context.Context, accountID string, intervalHours int) error {
	sched := domain.Schedule{AccountID: accountID, IntervalHours: intervalHours}
	if err := s.store.UpsertSchedule(ctx, sched); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(accountID)
	s.startLocked(accountID, intervalHours)
	return nil
}

// Unregister removes the account's schedule and stops its ticker.
func (s *Scheduler) Unregister(ctx context.Context, accountID string) error {
	if err := s.store.DeleteSchedule(ctx, accountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(accountID)
	return nil
}

// Stop halts all tickers and waits for loops to exit. The store is untouched
// so schedules resume on the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for accountID := range s.stops {
		s.stopLocked(accountID)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) startLocked(accountID string, intervalHours int) {
	if s.stopped {
		return
	}
	stop := make(chan struct{})
	s.stops[accountID] = stop
	s.wg.Add(1)
	go s.loop(accountID, s.interval(intervalHours), stop)
}

func (s *Scheduler) stopLocked(accountID string) {
	if stop, ok := s.stops[accountID]; ok {
		close(stop)
		delete(s.stops, accountID)
	}
}

func (s *Scheduler) loop(accountID string, interval time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx := context.Background()
			if _, err := s.scanner.ScanAccount(ctx, accountID, ""); err != nil {
				s.logger.ErrorContext(ctx, "scheduled scan failed",
					"account_id", accountID, "error", err)
			}
		}
	}
}
