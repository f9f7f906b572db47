// Package recommend implements the recommendation engine: per-category
// strategies, the account session registry, the background orchestrator and
// the recurring scan scheduler.
package recommend

import (
	"context"
	"math"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
)

// defaultSnapshotMaxAge is the age past which an EBS snapshot is flagged.
const defaultSnapshotMaxAge = 30 * 24 * time.Hour

// Session is a resolved, authenticated handle for one account. Constructed
// once per account by the Manager and shared by every strategy.
type Session struct {
	AccountID string
	Inspector inspector.Inspector
	Pricer    inspector.Pricer
	Snapshots storage.SnapshotStore
	Logger    observability.Logger

	// SnapshotMaxAge overrides the old-snapshot threshold. Zero means the
	// 30 day default.
	SnapshotMaxAge time.Duration
}

func (s *Session) snapshotMaxAge() time.Duration {
	if s.SnapshotMaxAge > 0 {
		return s.SnapshotMaxAge
	}
	return defaultSnapshotMaxAge
}

// Strategy is one waste category's scan/get/remediate implementation.
type Strategy interface {
	// Category returns the stable tag this strategy persists under.
	Category() domain.Category

	// Scan enumerates the category's wasteful resources, prices each
	// best-effort and replaces the stored snapshot. Enumeration failure is
	// fatal and leaves the previous snapshot intact.
	Scan(ctx context.Context) error

	// Get returns the latest stored snapshot, or storage.ErrNotFound.
	Get(ctx context.Context) (*domain.Snapshot, error)

	// Remediate applies the category mutation to every finding in the
	// latest snapshot. Per-finding failures are logged and skipped.
	Remediate(ctx context.Context) error
}

// strategyFactories is the closed set of known strategies. Categories map 1:1
// to constructors; the tag doubles as the persisted lookup key.
var strategyFactories = map[domain.Category]func(*Session) Strategy{
	domain.CategoryUnattachedVolumes: newVolumesStrategy,
	domain.CategoryOldSnapshots:      newOldSnapshotsStrategy,
	domain.CategoryUnassociatedEIP:   newAddressStrategy,
	domain.CategoryInstanceType:      newRightsizingStrategy,
}

// round4 keeps persisted totals to four decimal places.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// priceFinding attempts a best-effort unit price lookup and, on success, sets
// the price fields on f with totalPrice = unit price * quantity. Lookup
// failure leaves f unpriced; it never fails the scan.
func priceFinding(ctx context.Context, sess *Session, f *domain.Finding, q inspector.PriceQuery, quantity float64) {
	if sess.Pricer == nil {
		return
	}
	price, err := sess.Pricer.Price(ctx, q)
	if err != nil {
		sess.Logger.WarnContext(ctx, "price lookup failed",
			"resource_id", f.ResourceID, "region", f.Region, "error", err)
		return
	}
	if price == nil {
		return
	}
	total := round4(price.Amount * quantity)
	f.Price = &price.Amount
	f.PriceUnit = price.Unit
	f.TotalPrice = &total
}
