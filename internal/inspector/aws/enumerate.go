package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"cloudtrim/internal/inspector"
)

// UnattachedVolumes lists EBS volumes in the available state across all
// session regions.
func (s *Session) UnattachedVolumes(ctx context.Context) ([]inspector.Volume, error) {
	var volumes []inspector.Volume
	for _, region := range s.regions {
		client := s.ec2Clients[region]
		paginator := ec2.NewDescribeVolumesPaginator(client, &ec2.DescribeVolumesInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("status"), Values: []string{"available"}},
			},
		})
		for paginator.HasMorePages() {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("describe volumes in %s: %w", region, err)
			}
			for _, v := range page.Volumes {
				volumes = append(volumes, inspector.Volume{
					Region:     region,
					ID:         aws.ToString(v.VolumeId),
					Type:       string(v.VolumeType),
					SizeGB:     aws.ToInt32(v.Size),
					CreateTime: aws.ToTime(v.CreateTime),
				})
			}
		}
	}
	return volumes, nil
}

// SnapshotsOlderThan lists EBS snapshots owned by the account whose start
// time precedes cutoff, across all session regions.
func (s *Session) SnapshotsOlderThan(ctx context.Context, cutoff time.Time) ([]inspector.SnapshotInfo, error) {
	var snapshots []inspector.SnapshotInfo
	for _, region := range s.regions {
		client := s.ec2Clients[region]
		paginator := ec2.NewDescribeSnapshotsPaginator(client, &ec2.DescribeSnapshotsInput{
			OwnerIds: []string{"self"},
		})
		for paginator.HasMorePages() {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("describe snapshots in %s: %w", region, err)
			}
			for _, snap := range page.Snapshots {
				start := aws.ToTime(snap.StartTime)
				if !start.Before(cutoff) {
					continue
				}
				snapshots = append(snapshots, inspector.SnapshotInfo{
					Region:       region,
					ID:           aws.ToString(snap.SnapshotId),
					VolumeID:     aws.ToString(snap.VolumeId),
					VolumeSizeGB: aws.ToInt32(snap.VolumeSize),
					StartTime:    start,
				})
			}
		}
	}
	return snapshots, nil
}

// UnassociatedAddresses lists Elastic IPs with no association across all
// session regions.
func (s *Session) UnassociatedAddresses(ctx context.Context) ([]inspector.Address, error) {
	var addresses []inspector.Address
	for _, region := range s.regions {
		client := s.ec2Clients[region]
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		out, err := client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
		if err != nil {
			return nil, fmt.Errorf("describe addresses in %s: %w", region, err)
		}
		for _, addr := range out.Addresses {
			if addr.AssociationId != nil {
				continue
			}
			addresses = append(addresses, inspector.Address{
				Region:       region,
				AllocationID: aws.ToString(addr.AllocationId),
				PublicIP:     aws.ToString(addr.PublicIp),
			})
		}
	}
	return addresses, nil
}

// RightsizingCandidates asks Cost Explorer for EC2 modify recommendations.
func (s *Session) RightsizingCandidates(ctx context.Context) ([]inspector.RightsizingCandidate, error) {
	var candidates []inspector.RightsizingCandidate
	var token *string
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		out, err := s.ce.GetRightsizingRecommendation(ctx, &costexplorer.GetRightsizingRecommendationInput{
			Service:       aws.String("AmazonEC2"),
			NextPageToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("get rightsizing recommendations: %w", err)
		}

		for _, rec := range out.RightsizingRecommendations {
			if rec.RightsizingType != cetypes.RightsizingTypeModify {
				continue
			}
			candidate, ok := s.candidateFromRecommendation(ctx, rec)
			if !ok {
				continue
			}
			candidates = append(candidates, candidate)
		}

		token = out.NextPageToken
		if token == nil {
			break
		}
	}
	return candidates, nil
}

func (s *Session) candidateFromRecommendation(ctx context.Context, rec cetypes.RightsizingRecommendation) (inspector.RightsizingCandidate, bool) {
	cur := rec.CurrentInstance
	if cur == nil || cur.ResourceDetails == nil || cur.ResourceDetails.EC2ResourceDetails == nil {
		return inspector.RightsizingCandidate{}, false
	}
	details := cur.ResourceDetails.EC2ResourceDetails

	mod := rec.ModifyRecommendationDetail
	if mod == nil || len(mod.TargetInstances) == 0 {
		return inspector.RightsizingCandidate{}, false
	}
	target := mod.TargetInstances[0]
	if target.ResourceDetails == nil || target.ResourceDetails.EC2ResourceDetails == nil {
		return inspector.RightsizingCandidate{}, false
	}

	instanceID := aws.ToString(cur.ResourceId)
	region := locationRegion(aws.ToString(details.Region))
	if region == "" {
		region = s.locateInstance(ctx, instanceID)
	}
	if region == "" {
		s.logger.WarnContext(ctx, "cannot resolve region for rightsizing candidate",
			"instance_id", instanceID, "location", aws.ToString(details.Region))
		return inspector.RightsizingCandidate{}, false
	}

	return inspector.RightsizingCandidate{
		Region:                  region,
		InstanceID:              instanceID,
		CurrentInstanceType:     aws.ToString(details.InstanceType),
		RecommendedInstanceType: aws.ToString(target.ResourceDetails.EC2ResourceDetails.InstanceType),
		CurrentMonthlyCost:      parseCost(cur.MonthlyCost),
		EstimatedMonthlyCost:    parseCost(target.EstimatedMonthlyCost),
	}, true
}

// locateInstance finds the region hosting an instance by probing each session
// region. Fallback for recommendations whose location name is unmapped.
func (s *Session) locateInstance(ctx context.Context, instanceID string) string {
	for _, region := range s.regions {
		client := s.ec2Clients[region]
		if err := s.wait(ctx); err != nil {
			return ""
		}
		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			continue
		}
		for _, res := range out.Reservations {
			if len(res.Instances) > 0 {
				return region
			}
		}
	}
	return ""
}

func parseCost(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0
	}
	return v
}
