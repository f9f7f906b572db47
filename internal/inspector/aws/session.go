// Package aws implements the inspector contracts against AWS: EC2 for
// enumeration and mutation, Cost Explorer for rightsizing candidates and the
// Pricing API for unit prices.
package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/time/rate"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/observability"
)

// defaultRegion anchors the initial handshake; DescribeRegions and STS are
// global enough that any enabled region works.
const defaultRegion = "us-east-1"

// Options configures session construction.
type Options struct {
	Credentials domain.Credentials
	// Regions restricts the session to a subset. Empty means every region
	// enabled on the account.
	Regions []string
	// RequestsPerSecond bounds outbound AWS calls across all clients.
	// Zero means 10.
	RequestsPerSecond float64
	Logger            observability.Logger
}

// Session holds per-region EC2 clients plus the us-east-1 Cost Explorer and
// Pricing clients for one account. Construction performs the full provider
// handshake (credential resolution, STS identity, region discovery) so a
// constructed session is known-good.
type Session struct {
	accountNumber string
	regions       []string
	ec2Clients    map[string]*ec2.Client
	ce            *costexplorer.Client
	pricing       *pricing.Client
	limiter       *rate.Limiter
	logger        observability.Logger
}

var _ inspector.Inspector = (*Session)(nil)

// NewSession authenticates against AWS and builds the per-region client set.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}

	cfg, err := loadConfig(ctx, opts.Credentials)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	s := &Session{
		ec2Clients: make(map[string]*ec2.Client),
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:     logger.WithComponent("aws"),
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("resolve caller identity: %w", err)
	}
	s.accountNumber = aws.ToString(identity.Account)

	regions, err := s.discoverRegions(ctx, cfg, opts.Regions)
	if err != nil {
		return nil, fmt.Errorf("discover regions: %w", err)
	}
	s.regions = regions

	for _, region := range regions {
		regionalCfg := cfg.Copy()
		regionalCfg.Region = region
		s.ec2Clients[region] = ec2.NewFromConfig(regionalCfg)
	}

	// Cost Explorer and Pricing only serve us-east-1.
	globalCfg := cfg.Copy()
	globalCfg.Region = defaultRegion
	s.ce = costexplorer.NewFromConfig(globalCfg)
	s.pricing = pricing.NewFromConfig(globalCfg)

	s.logger.InfoContext(ctx, "aws session established",
		"account_number", s.accountNumber, "regions", len(s.regions))
	return s, nil
}

func loadConfig(ctx context.Context, creds domain.Credentials) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(defaultRegion),
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	if creds.RoleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		var roleOpts []func(*stscreds.AssumeRoleOptions)
		if creds.ExternalID != "" {
			externalID := creds.ExternalID
			roleOpts = append(roleOpts, func(o *stscreds.AssumeRoleOptions) {
				o.ExternalID = &externalID
			})
		}
		cfg.Credentials = aws.NewCredentialsCache(
			stscreds.NewAssumeRoleProvider(stsClient, creds.RoleARN, roleOpts...))
	}

	return cfg, nil
}

func (s *Session) discoverRegions(ctx context.Context, cfg aws.Config, requested []string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := ec2.NewFromConfig(cfg).DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, err
	}

	enabled := make(map[string]bool, len(out.Regions))
	for _, r := range out.Regions {
		enabled[aws.ToString(r.RegionName)] = true
	}

	if len(requested) > 0 {
		var regions []string
		for _, r := range requested {
			if !enabled[r] {
				return nil, fmt.Errorf("region %s is not enabled on account", r)
			}
			regions = append(regions, r)
		}
		sort.Strings(regions)
		return regions, nil
	}

	regions := make([]string, 0, len(enabled))
	for r := range enabled {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions, nil
}

// AccountNumber returns the AWS account ID the credentials resolve to.
func (s *Session) AccountNumber() string { return s.accountNumber }

// Regions returns the regions this session covers.
func (s *Session) Regions() []string {
	out := make([]string, len(s.regions))
	copy(out, s.regions)
	return out
}

func (s *Session) client(region string) (*ec2.Client, error) {
	c, ok := s.ec2Clients[region]
	if !ok {
		return nil, fmt.Errorf("region %s not covered by session", region)
	}
	return c, nil
}

func (s *Session) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}
