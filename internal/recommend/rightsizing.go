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

// rightsizingStrategy flags over-provisioned instances using the provider's
// cost analysis. Remediation changes the instance type, preserving the
// instance's power state: a running instance is stopped, modified and started
// again; a stopped instance is only modified.
type rightsizingStrategy struct {
	sess *Session
}

func newRightsizingStrategy(sess *Session) Strategy {
	return &rightsizingStrategy{sess: sess}
}

func (s *rightsizingStrategy) Category() domain.Category {
	return domain.CategoryInstanceType
}

func (s *rightsizingStrategy) Scan(ctx context.Context) error {
	candidates, err := s.sess.Inspector.RightsizingCandidates(ctx)
	if err != nil {
		return fmt.Errorf("enumerate rightsizing candidates: %w", err)
	}

	findings := make([]domain.Finding, 0, len(candidates))
	for _, c := range candidates {
		// Monthly savings come straight from the cost analysis, no price
		// lookup needed.
		savings := round4(c.CurrentMonthlyCost - c.EstimatedMonthlyCost)
		findings = append(findings, domain.Finding{
			Region:                  c.Region,
			ResourceID:              c.InstanceID,
			InstanceID:              c.InstanceID,
			CurrentInstanceType:     c.CurrentInstanceType,
			RecommendedInstanceType: c.RecommendedInstanceType,
			CurrentMonthlyCost:      c.CurrentMonthlyCost,
			EstimatedMonthlyCost:    c.EstimatedMonthlyCost,
			TotalPrice:              &savings,
		})
	}

	return s.sess.Snapshots.ReplaceSnapshot(ctx, domain.Snapshot{
		ID:          uuid.NewString(),
		AccountID:   s.sess.AccountID,
		Category:    s.Category(),
		Name:        "Rightsizing Instances",
		CollectedAt: time.Now().UTC(),
		TotalPrice:  round4(domain.TotalPrice(findings)),
		Findings:    findings,
	})
}

func (s *rightsizingStrategy) Get(ctx context.Context) (*domain.Snapshot, error) {
	return s.sess.Snapshots.LatestSnapshot(ctx, s.sess.AccountID, s.Category())
}

func (s *rightsizingStrategy) Remediate(ctx context.Context) error {
	snap, err := s.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.sess.Logger.InfoContext(ctx, "nothing to remediate", "category", s.Category())
		return nil
	}
	if err != nil {
		return err
	}

	for _, f := range snap.Findings {
		if err := s.resize(ctx, f); err != nil {
			s.sess.Logger.WarnContext(ctx, "resize instance failed",
				"instance_id", f.InstanceID, "region", f.Region, "error", err)
		}
	}
	return nil
}

func (s *rightsizingStrategy) resize(ctx context.Context, f domain.Finding) error {
	insp := s.sess.Inspector

	state, err := insp.InstanceState(ctx, f.Region, f.InstanceID)
	if err != nil {
		return fmt.Errorf("query instance state: %w", err)
	}

	wasRunning := state == inspector.InstanceRunning
	if wasRunning {
		if err := insp.StopInstance(ctx, f.Region, f.InstanceID); err != nil {
			return fmt.Errorf("stop instance: %w", err)
		}
	}

	modifyErr := insp.ModifyInstanceType(ctx, f.Region, f.InstanceID, f.RecommendedInstanceType)

	// Restore the pre-existing power state even when the modify failed.
	if wasRunning {
		if err := insp.StartInstance(ctx, f.Region, f.InstanceID); err != nil {
			s.sess.Logger.ErrorContext(ctx, "instance left stopped after resize attempt",
				"instance_id", f.InstanceID, "region", f.Region, "error", err)
		}
	}

	if modifyErr != nil {
		return fmt.Errorf("modify instance type: %w", modifyErr)
	}
	return nil
}
