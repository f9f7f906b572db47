// Package inspector defines the provider-facing contracts consumed by the
// recommendation strategies. Implementations live in provider subpackages.
package inspector

import (
	"context"
	"errors"
	"time"
)

// Remediation sentinels. Adapters wrap provider errors with these so
// strategies can tell benign refusals from real failures without importing
// the provider SDK.
var (
	// ErrResourceInUse means the provider refused a deletion because the
	// resource is still referenced, e.g. a snapshot backing an AMI.
	ErrResourceInUse = errors.New("resource in use")
	// ErrResourceGone means the resource disappeared between scan and
	// remediation.
	ErrResourceGone = errors.New("resource no longer exists")
)

// Volume describes an EBS volume with no attachment.
type Volume struct {
	Region     string
	ID         string
	Type       string
	SizeGB     int32
	CreateTime time.Time
}

// SnapshotInfo describes an EBS snapshot owned by the account.
type SnapshotInfo struct {
	Region       string
	ID           string
	VolumeID     string
	VolumeSizeGB int32
	StartTime    time.Time
}

// Address describes an allocated but unassociated Elastic IP.
type Address struct {
	Region       string
	AllocationID string
	PublicIP     string
}

// RightsizingCandidate is an instance the provider's cost analysis flags as
// over-provisioned, with the suggested replacement type.
type RightsizingCandidate struct {
	Region                  string
	InstanceID              string
	CurrentInstanceType     string
	RecommendedInstanceType string
	CurrentMonthlyCost      float64
	EstimatedMonthlyCost    float64
}

// InstanceState is the power state of an instance.
type InstanceState string

const (
	InstanceRunning  InstanceState = "running"
	InstanceStopped  InstanceState = "stopped"
	InstancePending  InstanceState = "pending"
	InstanceStopping InstanceState = "stopping"
	InstanceUnknown  InstanceState = "unknown"
)

// Inspector enumerates and mutates resources in one cloud account. All
// enumeration methods span every region the session was constructed with.
type Inspector interface {
	// AccountNumber returns the provider-native account identifier the
	// session's credentials resolve to.
	AccountNumber() string

	// Regions returns the regions this session covers.
	Regions() []string

	UnattachedVolumes(ctx context.Context) ([]Volume, error)
	SnapshotsOlderThan(ctx context.Context, cutoff time.Time) ([]SnapshotInfo, error)
	UnassociatedAddresses(ctx context.Context) ([]Address, error)
	RightsizingCandidates(ctx context.Context) ([]RightsizingCandidate, error)

	DeleteVolume(ctx context.Context, region, volumeID string) error
	DeleteSnapshot(ctx context.Context, region, snapshotID string) error
	ReleaseAddress(ctx context.Context, region, allocationID string) error

	InstanceState(ctx context.Context, region, instanceID string) (InstanceState, error)
	// StopInstance stops the instance and blocks until it reaches stopped.
	StopInstance(ctx context.Context, region, instanceID string) error
	StartInstance(ctx context.Context, region, instanceID string) error
	// ModifyInstanceType changes the instance type. The instance must be
	// stopped.
	ModifyInstanceType(ctx context.Context, region, instanceID, instanceType string) error
}

// PriceQuery identifies one priceable resource.
type PriceQuery struct {
	Region string
	// Service is the pricing service code, e.g. "AmazonEC2".
	Service string
	// Attributes narrow the product, e.g. volumeApiName=gp3.
	Attributes map[string]string
}

// Price is one unit price in USD.
type Price struct {
	Amount float64
	// Unit is the pricing unit, e.g. "GB-Mo" or "Hrs".
	Unit string
}

// Pricer resolves best-effort unit prices. A nil Price with a nil error means
// the price is unavailable; callers treat that as an unpriced finding rather
// than a failure.
type Pricer interface {
	Price(ctx context.Context, q PriceQuery) (*Price, error)
}
