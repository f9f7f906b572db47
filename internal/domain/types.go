// Package domain contains the core types shared across cloudtrim subsystems.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider identifies a cloud provider.
type Provider string

const (
	ProviderAWS Provider = "aws"
)

// Credentials holds the credential material for a cloud account.
// SecretAccessKey is encrypted at rest by the account store; it is only
// plaintext on an account resolved through the manager.
type Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	// RoleARN, when set, is assumed on top of the key pair (or the ambient
	// credential chain when the key pair is empty).
	RoleARN    string `json:"role_arn,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// CloudAccount is a registered cloud account eligible for scanning.
type CloudAccount struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Provider    Provider    `json:"provider"`
	Credentials Credentials `json:"credentials"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateCloudAccount is the input for registering an account.
type CreateCloudAccount struct {
	Name        string      `json:"name"`
	Provider    Provider    `json:"provider"`
	Credentials Credentials `json:"credentials"`
}

// ValidAccountID reports whether s is a well-formed account identifier.
// Accounts created by this service carry UUIDs; accounts imported from the
// previous generation of the service carry 24-hex document IDs. Both remain
// resolvable.
func ValidAccountID(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	if len(s) != 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Category tags one recommendation strategy. The tag string is persisted on
// every snapshot and used as the lookup key, so values are stable forever.
type Category string

const (
	CategoryUnattachedVolumes Category = "UnattachedVolumes"
	CategoryOldSnapshots      Category = "OldSnapshots"
	CategoryUnassociatedEIP   Category = "UnassociatedEIP"
	CategoryInstanceType      Category = "InstanceType"
)

// Categories lists all known categories in scan order.
var Categories = []Category{
	CategoryUnattachedVolumes,
	CategoryOldSnapshots,
	CategoryUnassociatedEIP,
	CategoryInstanceType,
}

// ValidCategory reports whether c names a known category.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Finding is one wasteful resource flagged by a scan. Region and ResourceID
// are always present so the finding can be remediated later without a
// re-scan. Price fields are pointers: absent means the price lookup failed,
// which is tolerated and excluded from the snapshot total.
type Finding struct {
	Region     string `json:"region"`
	ResourceID string `json:"id"`

	// Unattached volume fields.
	VolumeType string `json:"type,omitempty"`
	SizeGB     int32  `json:"size,omitempty"`
	CreateTime string `json:"createTime,omitempty"`

	// Old snapshot fields.
	VolumeID     string `json:"volumeId,omitempty"`
	VolumeSizeGB int32  `json:"volumeSize,omitempty"`

	// Rightsizing fields.
	InstanceID              string  `json:"instanceId,omitempty"`
	CurrentInstanceType     string  `json:"currentInstanceType,omitempty"`
	RecommendedInstanceType string  `json:"recInstanceType,omitempty"`
	CurrentMonthlyCost      float64 `json:"currentMonthlyCost,omitempty"`
	EstimatedMonthlyCost    float64 `json:"estimatedMonthlyCost,omitempty"`

	Price      *float64 `json:"price,omitempty"`
	PriceUnit  string   `json:"priceUnit,omitempty"`
	TotalPrice *float64 `json:"totalPrice,omitempty"`
}

// Snapshot is the persisted result of one scan for one (account, category)
// pair. A rescan replaces the previous snapshot; it is never merged.
type Snapshot struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Category    Category  `json:"category"`
	Name        string    `json:"name"`
	CollectedAt time.Time `json:"collected_at"`
	// TotalPrice is the estimated recoverable monthly cost in USD: the sum
	// of TotalPrice over findings that carry one.
	TotalPrice float64   `json:"total_price"`
	Findings   []Finding `json:"findings"`
}

// TotalPrice sums the priced contribution of each finding. Findings without
// a price contribute zero.
func TotalPrice(findings []Finding) float64 {
	var total float64
	for _, f := range findings {
		if f.TotalPrice != nil {
			total += *f.TotalPrice
		}
	}
	return total
}

// JobKind distinguishes background work types.
type JobKind string

const (
	JobKindScan      JobKind = "scan"
	JobKindRemediate JobKind = "remediate"
)

// JobStatus tracks the lifecycle of a background scan or remediation.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the queryable handle for one background scan or remediation run.
type Job struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Kind         JobKind    `json:"kind"`
	Category     Category   `json:"category,omitempty"` // empty = all categories
	Status       JobStatus  `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Schedule is a recurring scan registration for one account. One schedule
// per account: re-registering replaces the interval.
type Schedule struct {
	AccountID     string    `json:"account_id"`
	IntervalHours int       `json:"interval_hours"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks schedule parameters.
func (s Schedule) Validate() error {
	if s.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if s.IntervalHours < 1 {
		return fmt.Errorf("interval_hours must be at least 1, got %d", s.IntervalHours)
	}
	return nil
}
