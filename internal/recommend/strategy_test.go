package recommend

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/storage"
)

func TestVolumesScanGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{
		{Region: "us-east-1", ID: "vol-1", Type: "gp3", SizeGB: 100, CreateTime: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Region: "eu-west-1", ID: "vol-2", Type: "gp2", SizeGB: 50, CreateTime: time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC)},
	}
	pricer := &fakePricer{price: &inspector.Price{Amount: 0.08, Unit: "GB-Mo"}}
	store := storage.NewMemoryStore()
	strat := newVolumesStrategy(testSession(insp, pricer, store))

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	snap, err := strat.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(snap.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(snap.Findings))
	}
	if snap.Findings[0].ResourceID != "vol-1" || snap.Findings[0].CreateTime != "01/03/2024" {
		t.Errorf("finding #1 = %+v", snap.Findings[0])
	}
	// 100 GB * 0.08 + 50 GB * 0.08
	if want := 12.0; snap.TotalPrice != want {
		t.Errorf("total = %v, want %v", snap.TotalPrice, want)
	}
	if snap.TotalPrice != domain.TotalPrice(snap.Findings) {
		t.Errorf("snapshot total %v disagrees with finding sum %v",
			snap.TotalPrice, domain.TotalPrice(snap.Findings))
	}
}

func TestScanIdempotentAndReplacing(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{
		{Region: "us-east-1", ID: "vol-1", Type: "gp3", SizeGB: 10},
	}
	store := storage.NewMemoryStore()
	sess := testSession(insp, &fakePricer{price: &inspector.Price{Amount: 0.1, Unit: "GB-Mo"}}, store)
	strat := newVolumesStrategy(sess)

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	first, err := strat.Get(ctx)
	if err != nil {
		t.Fatalf("get after first scan: %v", err)
	}

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	second, err := strat.Get(ctx)
	if err != nil {
		t.Fatalf("get after second scan: %v", err)
	}

	// Same inventory produces the same finding set.
	if !reflect.DeepEqual(first.Findings, second.Findings) {
		t.Errorf("finding sets differ across identical scans:\n%+v\n%+v",
			first.Findings, second.Findings)
	}

	// Replacement, not accumulation.
	if n := store.SnapshotCount(sess.AccountID); n != 1 {
		t.Errorf("snapshots = %d after 2 scans, want 1", n)
	}
}

func TestEnumerationFailurePreservesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{{Region: "us-east-1", ID: "vol-1", Type: "gp3", SizeGB: 10}}
	store := storage.NewMemoryStore()
	strat := newVolumesStrategy(testSession(insp, nil, store))

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	insp.enumerateErr = errors.New("throttled")
	if err := strat.Scan(ctx); err == nil {
		t.Fatal("expected scan to fail when enumeration fails")
	}

	snap, err := strat.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(snap.Findings) != 1 || snap.Findings[0].ResourceID != "vol-1" {
		t.Errorf("previous snapshot not preserved: %+v", snap.Findings)
	}
}

func TestPartialPricingTolerance(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{
		{Region: "us-east-1", ID: "vol-priced", Type: "gp3", SizeGB: 100},
		{Region: "ap-south-1", ID: "vol-unpriced", Type: "gp3", SizeGB: 100},
	}
	pricer := &fakePricer{
		price:       &inspector.Price{Amount: 0.08, Unit: "GB-Mo"},
		failRegions: map[string]bool{"ap-south-1": true},
	}
	store := storage.NewMemoryStore()
	strat := newVolumesStrategy(testSession(insp, pricer, store))

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("scan must tolerate per-resource pricing failure: %v", err)
	}

	snap, err := strat.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(snap.Findings) != 2 {
		t.Fatalf("unpriced finding dropped: %d findings", len(snap.Findings))
	}

	var unpriced *domain.Finding
	for i := range snap.Findings {
		if snap.Findings[i].ResourceID == "vol-unpriced" {
			unpriced = &snap.Findings[i]
		}
	}
	if unpriced == nil {
		t.Fatal("vol-unpriced missing from snapshot")
	}
	if unpriced.Price != nil || unpriced.TotalPrice != nil || unpriced.PriceUnit != "" {
		t.Errorf("unpriced finding carries price fields: %+v", unpriced)
	}
	if want := 8.0; snap.TotalPrice != want {
		t.Errorf("total = %v, want %v (unpriced excluded)", snap.TotalPrice, want)
	}
}

func TestRemediationResilience(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.volumes = []inspector.Volume{
		{Region: "us-east-1", ID: "vol-1", Type: "gp3", SizeGB: 10},
		{Region: "us-east-1", ID: "vol-2", Type: "gp3", SizeGB: 10},
		{Region: "us-east-1", ID: "vol-3", Type: "gp3", SizeGB: 10},
	}
	insp.mutationErr["vol-2"] = errors.New("VolumeInUse")
	store := storage.NewMemoryStore()
	strat := newVolumesStrategy(testSession(insp, nil, store))

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := strat.Remediate(ctx); err != nil {
		t.Fatalf("remediate: %v", err)
	}

	want := []string{"delete-volume:vol-1", "delete-volume:vol-2", "delete-volume:vol-3"}
	if got := insp.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("mutation calls = %v, want %v", got, want)
	}
}

func TestRemediateWithoutSnapshotIsNoop(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	strat := newVolumesStrategy(testSession(insp, nil, storage.NewMemoryStore()))

	if err := strat.Remediate(ctx); err != nil {
		t.Fatalf("remediate with no snapshot: %v", err)
	}
	if calls := insp.callLog(); len(calls) != 0 {
		t.Errorf("unexpected mutations: %v", calls)
	}
}

func TestRightsizingPowerStatePreservation(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.candidates = []inspector.RightsizingCandidate{
		{Region: "us-east-1", InstanceID: "i-running", CurrentInstanceType: "m5.2xlarge",
			RecommendedInstanceType: "m5.xlarge", CurrentMonthlyCost: 280, EstimatedMonthlyCost: 140},
		{Region: "us-east-1", InstanceID: "i-stopped", CurrentInstanceType: "c5.4xlarge",
			RecommendedInstanceType: "c5.2xlarge", CurrentMonthlyCost: 500, EstimatedMonthlyCost: 250},
	}
	insp.states["i-running"] = inspector.InstanceRunning
	insp.states["i-stopped"] = inspector.InstanceStopped
	store := storage.NewMemoryStore()
	strat := newRightsizingStrategy(testSession(insp, nil, store))

	if err := strat.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	snap, err := strat.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Savings: 140 + 250
	if want := 390.0; snap.TotalPrice != want {
		t.Errorf("total savings = %v, want %v", snap.TotalPrice, want)
	}

	if err := strat.Remediate(ctx); err != nil {
		t.Fatalf("remediate: %v", err)
	}

	log := strings.Join(insp.callLog(), "\n")

	// Running instance: stop, then modify, then start, in that order.
	stopIdx := strings.Index(log, "stop:i-running")
	modIdx := strings.Index(log, "modify:m5.xlarge:i-running")
	startIdx := strings.Index(log, "start:i-running")
	if stopIdx < 0 || modIdx < 0 || startIdx < 0 {
		t.Fatalf("missing calls for running instance:\n%s", log)
	}
	if !(stopIdx < modIdx && modIdx < startIdx) {
		t.Errorf("calls out of order for running instance:\n%s", log)
	}

	// Stopped instance: modify only, never stopped or started.
	if !strings.Contains(log, "modify:c5.2xlarge:i-stopped") {
		t.Errorf("stopped instance was not modified:\n%s", log)
	}
	if strings.Contains(log, "start:i-stopped") || strings.Contains(log, "stop:i-stopped") {
		t.Errorf("stopped instance power state was touched:\n%s", log)
	}
}

func TestOldSnapshotsAndAddressesScan(t *testing.T) {
	ctx := context.Background()
	insp := newFakeInspector()
	insp.snapshots = []inspector.SnapshotInfo{
		{Region: "us-east-1", ID: "snap-1", VolumeID: "vol-9", VolumeSizeGB: 200},
	}
	insp.addresses = []inspector.Address{
		{Region: "us-east-1", AllocationID: "eipalloc-1"},
	}
	store := storage.NewMemoryStore()
	sess := testSession(insp, &fakePricer{price: &inspector.Price{Amount: 0.005, Unit: "Hrs"}}, store)

	for _, strat := range []Strategy{newOldSnapshotsStrategy(sess), newAddressStrategy(sess)} {
		if err := strat.Scan(ctx); err != nil {
			t.Fatalf("%s scan: %v", strat.Category(), err)
		}
		snap, err := strat.Get(ctx)
		if err != nil {
			t.Fatalf("%s get: %v", strat.Category(), err)
		}
		if len(snap.Findings) != 1 {
			t.Errorf("%s findings = %d, want 1", strat.Category(), len(snap.Findings))
		}
	}

	// Remediation routes to the right mutation per category.
	if err := newOldSnapshotsStrategy(sess).Remediate(ctx); err != nil {
		t.Fatalf("remediate snapshots: %v", err)
	}
	if err := newAddressStrategy(sess).Remediate(ctx); err != nil {
		t.Fatalf("remediate addresses: %v", err)
	}
	log := strings.Join(insp.callLog(), "\n")
	if !strings.Contains(log, "delete-snapshot:snap-1") || !strings.Contains(log, "release-address:eipalloc-1") {
		t.Errorf("unexpected mutation log:\n%s", log)
	}
}
