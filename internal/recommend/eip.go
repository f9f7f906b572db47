package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/storage"
)

// hoursPerMonth converts hourly unit prices to a monthly estimate.
const hoursPerMonth = 730

// addressStrategy flags Elastic IPs allocated but not associated with
// anything. Remediation releases the allocation.
type addressStrategy struct {
	sess *Session
}

func newAddressStrategy(sess *Session) Strategy {
	return &addressStrategy{sess: sess}
}

func (s *addressStrategy) Category() domain.Category {
	return domain.CategoryUnassociatedEIP
}

func (s *addressStrategy) Scan(ctx context.Context) error {
	addresses, err := s.sess.Inspector.UnassociatedAddresses(ctx)
	if err != nil {
		return fmt.Errorf("enumerate unassociated addresses: %w", err)
	}

	findings := make([]domain.Finding, 0, len(addresses))
	for _, addr := range addresses {
		f := domain.Finding{
			Region:     addr.Region,
			ResourceID: addr.AllocationID,
		}
		priceFinding(ctx, s.sess, &f, inspector.PriceQuery{
			Region:  addr.Region,
			Service: "AmazonEC2",
			Attributes: map[string]string{
				"productFamily": "IP Address",
			},
		}, hoursPerMonth)
		findings = append(findings, f)
	}

	return s.sess.Snapshots.ReplaceSnapshot(ctx, domain.Snapshot{
		ID:          uuid.NewString(),
		AccountID:   s.sess.AccountID,
		Category:    s.Category(),
		Name:        "Unassociated EIPs",
		CollectedAt: time.Now().UTC(),
		TotalPrice:  round4(domain.TotalPrice(findings)),
		Findings:    findings,
	})
}

func (s *addressStrategy) Get(ctx context.Context) (*domain.Snapshot, error) {
	return s.sess.Snapshots.LatestSnapshot(ctx, s.sess.AccountID, s.Category())
}

func (s *addressStrategy) Remediate(ctx context.Context) error {
	snap, err := s.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.sess.Logger.InfoContext(ctx, "nothing to remediate", "category", s.Category())
		return nil
	}
	if err != nil {
		return err
	}

	for _, f := range snap.Findings {
		if err := s.sess.Inspector.ReleaseAddress(ctx, f.Region, f.ResourceID); err != nil {
			s.sess.Logger.WarnContext(ctx, "release address failed",
				"allocation_id", f.ResourceID, "region", f.Region, "error", err)
		}
	}
	return nil
}
