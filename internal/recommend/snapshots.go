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

// oldSnapshotsStrategy flags EBS snapshots older than the configured
// threshold. Remediation deletes them.
type oldSnapshotsStrategy struct {
	sess *Session
}

func newOldSnapshotsStrategy(sess *Session) Strategy {
	return &oldSnapshotsStrategy{sess: sess}
}

func (s *oldSnapshotsStrategy) Category() domain.Category {
	return domain.CategoryOldSnapshots
}

func (s *oldSnapshotsStrategy) Scan(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.sess.snapshotMaxAge())
	snapshots, err := s.sess.Inspector.SnapshotsOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("enumerate old snapshots: %w", err)
	}

	findings := make([]domain.Finding, 0, len(snapshots))
	for _, snap := range snapshots {
		f := domain.Finding{
			Region:       snap.Region,
			ResourceID:   snap.ID,
			VolumeID:     snap.VolumeID,
			VolumeSizeGB: snap.VolumeSizeGB,
		}
		priceFinding(ctx, s.sess, &f, inspector.PriceQuery{
			Region:  snap.Region,
			Service: "AmazonEC2",
			Attributes: map[string]string{
				"productFamily": "Storage Snapshot",
			},
		}, float64(snap.VolumeSizeGB))
		findings = append(findings, f)
	}

	return s.sess.Snapshots.ReplaceSnapshot(ctx, domain.Snapshot{
		ID:          uuid.NewString(),
		AccountID:   s.sess.AccountID,
		Category:    s.Category(),
		Name:        "Old Snapshots",
		CollectedAt: time.Now().UTC(),
		TotalPrice:  round4(domain.TotalPrice(findings)),
		Findings:    findings,
	})
}

func (s *oldSnapshotsStrategy) Get(ctx context.Context) (*domain.Snapshot, error) {
	return s.sess.Snapshots.LatestSnapshot(ctx, s.sess.AccountID, s.Category())
}

func (s *oldSnapshotsStrategy) Remediate(ctx context.Context) error {
	snap, err := s.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.sess.Logger.InfoContext(ctx, "nothing to remediate", "category", s.Category())
		return nil
	}
	if err != nil {
		return err
	}

	for _, f := range snap.Findings {
		err := s.sess.Inspector.DeleteSnapshot(ctx, f.Region, f.ResourceID)
		switch {
		case err == nil:
		case errors.Is(err, inspector.ErrResourceInUse), errors.Is(err, inspector.ErrResourceGone):
			// Snapshot backs an AMI or was already deleted.
			s.sess.Logger.InfoContext(ctx, "snapshot skipped",
				"snapshot_id", f.ResourceID, "region", f.Region, "reason", err)
		default:
			s.sess.Logger.WarnContext(ctx, "delete snapshot failed",
				"snapshot_id", f.ResourceID, "region", f.Region, "error", err)
		}
	}
	return nil
}
