package recommend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/storage"
)

func newTestManager(t *testing.T, store *storage.MemoryStore, factory SessionFactory) *Manager {
	t.Helper()
	return NewManager(ManagerOptions{
		Accounts:  store,
		Snapshots: store,
		Factory:   factory,
		Logger:    testLogger(),
	})
}

func registerAccount(t *testing.T, store *storage.MemoryStore, name string) domain.CloudAccount {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), domain.CreateCloudAccount{
		Name:     name,
		Provider: domain.ProviderAWS,
		Credentials: domain.Credentials{
			AccessKeyID:     "AKIAEXAMPLE",
			SecretAccessKey: "secret",
		},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestResolveTypedErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestManager(t, store, func(context.Context, domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		t.Fatal("factory must not run for unresolvable identities")
		return nil, nil, nil
	})

	if _, err := m.Resolve(ctx, "not-an-id"); !errors.Is(err, ErrInvalidAccountID) {
		t.Errorf("malformed identity: got %v, want ErrInvalidAccountID", err)
	}
	// Well-formed legacy document ID with no matching account.
	if _, err := m.Resolve(ctx, "507f1f77bcf86cd799439011"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("unknown identity: got %v, want ErrAccountNotFound", err)
	}
}

func TestResolveConcurrentSingleHandshake(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")

	var handshakes atomic.Int64
	m := newTestManager(t, store, func(context.Context, domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		handshakes.Add(1)
		return newFakeInspector(), nil, nil
	})

	const n = 16
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := m.Resolve(ctx, account.ID)
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	if got := handshakes.Load(); got != 1 {
		t.Errorf("handshakes = %d, want exactly 1", got)
	}
	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("resolve returned distinct sessions for one account")
		}
	}
}

func TestResolveDistinctAccounts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	a := registerAccount(t, store, "prod")
	b := registerAccount(t, store, "staging")

	var handshakes atomic.Int64
	m := newTestManager(t, store, func(context.Context, domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		handshakes.Add(1)
		return newFakeInspector(), nil, nil
	})

	sa, err := m.Resolve(ctx, a.ID)
	if err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	sb, err := m.Resolve(ctx, b.ID)
	if err != nil {
		t.Fatalf("resolve b: %v", err)
	}
	if sa == sb {
		t.Fatal("distinct accounts share a session")
	}
	if got := handshakes.Load(); got != 2 {
		t.Errorf("handshakes = %d, want 2", got)
	}
}

func TestFailedConstructionNotCached(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")

	var attempts atomic.Int64
	m := newTestManager(t, store, func(context.Context, domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		if attempts.Add(1) == 1 {
			return nil, nil, errors.New("transient auth failure")
		}
		return newFakeInspector(), nil, nil
	})

	if _, err := m.Resolve(ctx, account.ID); err == nil {
		t.Fatal("expected first resolve to fail")
	}
	if _, err := m.Resolve(ctx, account.ID); err != nil {
		t.Fatalf("second resolve should retry construction: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestInvalidateDropsSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")

	var handshakes atomic.Int64
	m := newTestManager(t, store, func(context.Context, domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		handshakes.Add(1)
		return newFakeInspector(), nil, nil
	})

	if _, err := m.Resolve(ctx, account.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	m.Invalidate(account.ID)
	if _, err := m.Resolve(ctx, account.ID); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if got := handshakes.Load(); got != 2 {
		t.Errorf("handshakes = %d, want 2 after invalidation", got)
	}
}

func TestResolveDecryptsCredentials(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod") // stores "secret" as ciphertext

	var seen string
	m := NewManager(ManagerOptions{
		Accounts:  store,
		Snapshots: store,
		Decrypter: reverseDecrypter{},
		Logger:    testLogger(),
		Factory: func(_ context.Context, a domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
			seen = a.Credentials.SecretAccessKey
			return newFakeInspector(), nil, nil
		},
	})

	if _, err := m.Resolve(ctx, account.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seen != "terces" {
		t.Errorf("factory saw %q, want decrypted %q", seen, "terces")
	}
}

// reverseDecrypter "decrypts" by reversing the string.
type reverseDecrypter struct{}

func (reverseDecrypter) Open(s string) (string, error) {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

func TestStrategiesSelection(t *testing.T) {
	sess := testSession(newFakeInspector(), nil, storage.NewMemoryStore())
	m := newTestManager(t, storage.NewMemoryStore(), nil)

	all, err := m.Strategies(sess, "")
	if err != nil {
		t.Fatalf("all strategies: %v", err)
	}
	if len(all) != len(domain.Categories) {
		t.Errorf("strategies = %d, want %d", len(all), len(domain.Categories))
	}
	for i, strat := range all {
		if strat.Category() != domain.Categories[i] {
			t.Errorf("strategy %d category = %s, want %s", i, strat.Category(), domain.Categories[i])
		}
	}

	one, err := m.Strategies(sess, domain.CategoryOldSnapshots)
	if err != nil || len(one) != 1 || one[0].Category() != domain.CategoryOldSnapshots {
		t.Errorf("single strategy selection failed: %v, %v", one, err)
	}

	if _, err := m.Strategies(sess, "NoSuchCategory"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("unknown category: got %v, want ErrUnknownCategory", err)
	}
}
