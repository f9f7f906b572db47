package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
)

// SessionFactory performs the provider handshake for one account and returns
// its Inspector and Pricer. The credentials on the account are plaintext by
// the time the factory sees them.
type SessionFactory func(ctx context.Context, account domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error)

// Decrypter opens credential ciphertext stored on an account. A nil Decrypter
// on the Manager means credentials are stored in the clear.
type Decrypter interface {
	Open(ciphertext string) (string, error)
}

// Manager resolves account identifiers to cached Sessions. At most one
// Session is ever constructed per account, even under concurrent Resolve
// calls; distinct accounts construct in parallel.
type Manager struct {
	accounts   storage.AccountStore
	snapshots  storage.SnapshotStore
	factory    SessionFactory
	decrypter  Decrypter
	logger     observability.Logger
	maxSnapAge time.Duration

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// sessionEntry holds one account's construction singleflight. The once
// guarantees exactly one provider handshake per entry; a failed handshake
// removes the entry so the next Resolve retries.
type sessionEntry struct {
	once sync.Once
	sess *Session
	err  error
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Accounts  storage.AccountStore
	Snapshots storage.SnapshotStore
	Factory   SessionFactory
	Decrypter Decrypter
	Logger    observability.Logger
	// SnapshotMaxAge is the old-snapshot threshold handed to sessions.
	// Zero means the 30 day default.
	SnapshotMaxAge time.Duration
}

// NewManager creates a Manager with an empty session cache.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Manager{
		accounts:   opts.Accounts,
		snapshots:  opts.Snapshots,
		factory:    opts.Factory,
		decrypter:  opts.Decrypter,
		logger:     logger.WithComponent("manager"),
		maxSnapAge: opts.SnapshotMaxAge,
		entries:    make(map[string]*sessionEntry),
	}
}

// Resolve returns the cached Session for identity, constructing it on first
// use. Malformed identifiers return ErrInvalidAccountID and unregistered ones
// ErrAccountNotFound; both are decided before any handshake starts.
func (m *Manager) Resolve(ctx context.Context, identity string) (*Session, error) {
	if !domain.ValidAccountID(identity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountID, identity)
	}

	account, err := m.accounts.GetAccount(ctx, identity)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("look up account %s: %w", identity, err)
	}

	m.mu.Lock()
	entry, ok := m.entries[account.ID]
	if !ok {
		entry = &sessionEntry{}
		m.entries[account.ID] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		entry.sess, entry.err = m.construct(ctx, *account)
	})

	if entry.err != nil {
		// Failed construction is not cached: drop the entry so a later
		// Resolve can retry, unless it was already replaced.
		m.mu.Lock()
		if m.entries[account.ID] == entry {
			delete(m.entries, account.ID)
		}
		m.mu.Unlock()
		return nil, entry.err
	}
	return entry.sess, nil
}

func (m *Manager) construct(ctx context.Context, account domain.CloudAccount) (*Session, error) {
	if m.decrypter != nil && account.Credentials.SecretAccessKey != "" {
		secret, err := m.decrypter.Open(account.Credentials.SecretAccessKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt credentials for account %s: %w", account.ID, err)
		}
		account.Credentials.SecretAccessKey = secret
	}

	insp, pricer, err := m.factory(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("establish session for account %s: %w", account.ID, err)
	}

	m.logger.InfoContext(ctx, "session established",
		"account_id", account.ID, "account_number", insp.AccountNumber())

	return &Session{
		AccountID:      account.ID,
		Inspector:      insp,
		Pricer:         pricer,
		Snapshots:      m.snapshots,
		Logger:         m.logger,
		SnapshotMaxAge: m.maxSnapAge,
	}, nil
}

// Strategies returns the strategy for category, or every strategy in scan
// order when category is empty.
func (m *Manager) Strategies(sess *Session, category domain.Category) ([]Strategy, error) {
	if category != "" {
		factory, ok := strategyFactories[category]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		return []Strategy{factory(sess)}, nil
	}

	strategies := make([]Strategy, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		strategies = append(strategies, strategyFactories[cat](sess))
	}
	return strategies, nil
}

// Invalidate drops the cached session for an account. Used when the account
// is deleted or its credentials rotate.
func (m *Manager) Invalidate(accountID string) {
	m.mu.Lock()
	delete(m.entries, accountID)
	m.mu.Unlock()
}
