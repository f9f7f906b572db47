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

// volumesStrategy flags EBS volumes with no attachment. Remediation deletes
// them.
type volumesStrategy struct {
	sess *Session
}

func newVolumesStrategy(sess *Session) Strategy {
	return &volumesStrategy{sess: sess}
}

func (s *volumesStrategy) Category() domain.Category {
	return domain.CategoryUnattachedVolumes
}

func (s *volumesStrategy) Scan(ctx context.Context) error {
	volumes, err := s.sess.Inspector.UnattachedVolumes(ctx)
	if err != nil {
		return fmt.Errorf("enumerate unattached volumes: %w", err)
	}

	findings := make([]domain.Finding, 0, len(volumes))
	for _, v := range volumes {
		f := domain.Finding{
			Region:     v.Region,
			ResourceID: v.ID,
			VolumeType: v.Type,
			SizeGB:     v.SizeGB,
			CreateTime: v.CreateTime.Format("02/01/2006"),
		}
		priceFinding(ctx, s.sess, &f, inspector.PriceQuery{
			Region:  v.Region,
			Service: "AmazonEC2",
			Attributes: map[string]string{
				"productFamily": "Storage",
				"volumeApiName": v.Type,
			},
		}, float64(v.SizeGB))
		findings = append(findings, f)
	}

	return s.sess.Snapshots.ReplaceSnapshot(ctx, domain.Snapshot{
		ID:          uuid.NewString(),
		AccountID:   s.sess.AccountID,
		Category:    s.Category(),
		Name:        "Unattached Volumes",
		CollectedAt: time.Now().UTC(),
		TotalPrice:  round4(domain.TotalPrice(findings)),
		Findings:    findings,
	})
}

func (s *volumesStrategy) Get(ctx context.Context) (*domain.Snapshot, error) {
	return s.sess.Snapshots.LatestSnapshot(ctx, s.sess.AccountID, s.Category())
}

func (s *volumesStrategy) Remediate(ctx context.Context) error {
	snap, err := s.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.sess.Logger.InfoContext(ctx, "nothing to remediate", "category", s.Category())
		return nil
	}
	if err != nil {
		return err
	}

	for _, f := range snap.Findings {
		if err := s.sess.Inspector.DeleteVolume(ctx, f.Region, f.ResourceID); err != nil {
			s.sess.Logger.WarnContext(ctx, "delete volume failed",
				"volume_id", f.ResourceID, "region", f.Region, "error", err)
		}
	}
	return nil
}
