package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/storage"
)

func newTestOrchestrator(t *testing.T, store *storage.MemoryStore, insp *fakeInspector) *Orchestrator {
	t.Helper()
	m := newTestManager(t, store, func(context.Context, domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		return insp, nil, nil
	})
	return NewOrchestrator(OrchestratorOptions{
		Manager:    m,
		Jobs:       store,
		Logger:     testLogger(),
		JobTimeout: 30 * time.Second,
	})
}

func waitForJob(t *testing.T, store storage.JobStore, id string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == domain.JobStatusCompleted || job.Status == domain.JobStatusFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}

func TestScanAccountRunsAllCategories(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{{Region: "us-east-1", ID: "vol-1", Type: "gp3", SizeGB: 10}}
	o := newTestOrchestrator(t, store, insp)

	job, err := o.ScanAccount(ctx, account.ID, "")
	if err != nil {
		t.Fatalf("scan account: %v", err)
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("initial status = %s, want pending", job.Status)
	}

	done := waitForJob(t, store, job.ID)
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s (%s), want completed", done.Status, done.ErrorMessage)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not populated")
	}

	snaps, err := store.LatestSnapshots(ctx, account.ID)
	if err != nil {
		t.Fatalf("latest snapshots: %v", err)
	}
	if len(snaps) != len(domain.Categories) {
		t.Errorf("snapshots = %d, want one per category (%d)", len(snaps), len(domain.Categories))
	}
}

func TestScanAccountUnknownCategoryWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")
	o := newTestOrchestrator(t, store, newFakeInspector())

	_, err := o.ScanAccount(ctx, account.ID, "NoSuchCategory")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("got %v, want ErrUnknownCategory", err)
	}

	if n := store.SnapshotCount(account.ID); n != 0 {
		t.Errorf("snapshots written = %d, want 0", n)
	}
	jobs, err := store.ListJobs(ctx, account.ID)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("jobs created = %d, want 0", len(jobs))
	}
}

func TestScanAccountResolutionErrorsSurface(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	o := newTestOrchestrator(t, store, newFakeInspector())

	if _, err := o.ScanAccount(ctx, "not-an-id", ""); !errors.Is(err, ErrInvalidAccountID) {
		t.Errorf("got %v, want ErrInvalidAccountID", err)
	}
	if _, err := o.ScanAccount(ctx, "507f1f77bcf86cd799439011", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}

func TestScanFailureRecordedOnJobSiblingsContinue(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")
	insp := newFakeInspector()
	insp.enumerateErr = errors.New("throttled")
	o := newTestOrchestrator(t, store, insp)

	job, err := o.ScanAccount(ctx, account.ID, "")
	if err != nil {
		t.Fatalf("scan account: %v", err)
	}

	done := waitForJob(t, store, job.ID)
	if done.Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", done.Status)
	}
	// Every category failed independently and every failure is on the job.
	for _, cat := range domain.Categories {
		if !strings.Contains(done.ErrorMessage, string(cat)) {
			t.Errorf("error message missing category %s: %q", cat, done.ErrorMessage)
		}
	}
}

func TestRemediateAccountSingleCategory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	account := registerAccount(t, store, "prod")
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{{Region: "us-east-1", ID: "vol-1", Type: "gp3", SizeGB: 10}}
	o := newTestOrchestrator(t, store, insp)

	scanJob, err := o.ScanAccount(ctx, account.ID, domain.CategoryUnattachedVolumes)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	waitForJob(t, store, scanJob.ID)

	remJob, err := o.RemediateAccount(ctx, account.ID, domain.CategoryUnattachedVolumes)
	if err != nil {
		t.Fatalf("remediate: %v", err)
	}
	done := waitForJob(t, store, remJob.ID)
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("remediation status = %s (%s)", done.Status, done.ErrorMessage)
	}
	if done.Kind != domain.JobKindRemediate {
		t.Errorf("kind = %s, want remediate", done.Kind)
	}

	found := false
	for _, call := range insp.callLog() {
		if call == "delete-volume:vol-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("remediation never reached the inspector: %v", insp.callLog())
	}
}
