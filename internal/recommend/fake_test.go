package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloudtrim/internal/inspector"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/storage"
)

// fakeInspector is an in-memory Inspector with scriptable inventory,
// per-resource mutation failures and an ordered call log.
type fakeInspector struct {
	mu sync.Mutex

	accountNumber string
	volumes       []inspector.Volume
	snapshots     []inspector.SnapshotInfo
	addresses     []inspector.Address
	candidates    []inspector.RightsizingCandidate

	enumerateErr error
	mutationErr  map[string]error
	states       map[string]inspector.InstanceState

	calls []string
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		accountNumber: "123456789012",
		mutationErr:   make(map[string]error),
		states:        make(map[string]inspector.InstanceState),
	}
}

func (f *fakeInspector) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeInspector) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeInspector) AccountNumber() string { return f.accountNumber }
func (f *fakeInspector) Regions() []string     { return []string{"us-east-1"} }

func (f *fakeInspector) UnattachedVolumes(context.Context) ([]inspector.Volume, error) {
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	return f.volumes, nil
}

func (f *fakeInspector) SnapshotsOlderThan(context.Context, time.Time) ([]inspector.SnapshotInfo, error) {
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	return f.snapshots, nil
}

func (f *fakeInspector) UnassociatedAddresses(context.Context) ([]inspector.Address, error) {
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	return f.addresses, nil
}

func (f *fakeInspector) RightsizingCandidates(context.Context) ([]inspector.RightsizingCandidate, error) {
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	return f.candidates, nil
}

func (f *fakeInspector) mutate(op, id string) error {
	f.record("%s:%s", op, id)
	return f.mutationErr[id]
}

func (f *fakeInspector) DeleteVolume(_ context.Context, _, volumeID string) error {
	return f.mutate("delete-volume", volumeID)
}

func (f *fakeInspector) DeleteSnapshot(_ context.Context, _, snapshotID string) error {
	return f.mutate("delete-snapshot", snapshotID)
}

func (f *fakeInspector) ReleaseAddress(_ context.Context, _, allocationID string) error {
	return f.mutate("release-address", allocationID)
}

func (f *fakeInspector) InstanceState(_ context.Context, _, instanceID string) (inspector.InstanceState, error) {
	f.record("state:%s", instanceID)
	if state, ok := f.states[instanceID]; ok {
		return state, nil
	}
	return inspector.InstanceUnknown, fmt.Errorf("instance %s not found", instanceID)
}

func (f *fakeInspector) StopInstance(_ context.Context, _, instanceID string) error {
	if err := f.mutate("stop", instanceID); err != nil {
		return err
	}
	f.states[instanceID] = inspector.InstanceStopped
	return nil
}

func (f *fakeInspector) StartInstance(_ context.Context, _, instanceID string) error {
	if err := f.mutate("start", instanceID); err != nil {
		return err
	}
	f.states[instanceID] = inspector.InstanceRunning
	return nil
}

func (f *fakeInspector) ModifyInstanceType(_ context.Context, _, instanceID, instanceType string) error {
	return f.mutate("modify:"+instanceType, instanceID)
}

// fakePricer returns scripted prices keyed by a query attribute, or fails for
// flagged regions.
type fakePricer struct {
	// price returned for every successful lookup. Nil means unavailable.
	price *inspector.Price
	// failRegions makes lookups for these regions error.
	failRegions map[string]bool
}

func (p *fakePricer) Price(_ context.Context, q inspector.PriceQuery) (*inspector.Price, error) {
	if p.failRegions[q.Region] {
		return nil, fmt.Errorf("pricing unavailable in %s", q.Region)
	}
	return p.price, nil
}

func testLogger() observability.Logger {
	return observability.NewLogger(observability.Config{Level: "error", Format: "text"})
}

func testSession(insp inspector.Inspector, pricer inspector.Pricer, store storage.SnapshotStore) *Session {
	return &Session{
		AccountID: "d8b2c9e0f1a2b3c4d5e6f7a8",
		Inspector: insp,
		Pricer:    pricer,
		Snapshots: store,
		Logger:    testLogger(),
	}
}
