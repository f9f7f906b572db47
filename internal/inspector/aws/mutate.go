package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"cloudtrim/internal/inspector"
)

// stopWaitTimeout bounds how long a remediation blocks on an instance
// reaching the stopped state.
const stopWaitTimeout = 10 * time.Minute

// DeleteVolume deletes an EBS volume.
func (s *Session) DeleteVolume(ctx context.Context, region, volumeID string) error {
	client, err := s.client(region)
	if err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if _, err := client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{
		VolumeId: aws.String(volumeID),
	}); err != nil {
		return fmt.Errorf("delete volume %s in %s: %w", volumeID, region, classify(err))
	}
	return nil
}

// DeleteSnapshot deletes an EBS snapshot.
func (s *Session) DeleteSnapshot(ctx context.Context, region, snapshotID string) error {
	client, err := s.client(region)
	if err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if _, err := client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	}); err != nil {
		return fmt.Errorf("delete snapshot %s in %s: %w", snapshotID, region, classify(err))
	}
	return nil
}

// ReleaseAddress releases an Elastic IP allocation.
func (s *Session) ReleaseAddress(ctx context.Context, region, allocationID string) error {
	client, err := s.client(region)
	if err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if _, err := client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
		AllocationId: aws.String(allocationID),
	}); err != nil {
		return fmt.Errorf("release address %s in %s: %w", allocationID, region, classify(err))
	}
	return nil
}

// InstanceState returns the current power state of an instance.
func (s *Session) InstanceState(ctx context.Context, region, instanceID string) (inspector.InstanceState, error) {
	client, err := s.client(region)
	if err != nil {
		return inspector.InstanceUnknown, err
	}
	if err := s.wait(ctx); err != nil {
		return inspector.InstanceUnknown, err
	}
	out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return inspector.InstanceUnknown, fmt.Errorf("describe instance %s in %s: %w", instanceID, region, err)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if inst.State == nil {
				continue
			}
			switch inst.State.Name {
			case ec2types.InstanceStateNameRunning:
				return inspector.InstanceRunning, nil
			case ec2types.InstanceStateNameStopped:
				return inspector.InstanceStopped, nil
			case ec2types.InstanceStateNamePending:
				return inspector.InstancePending, nil
			case ec2types.InstanceStateNameStopping:
				return inspector.InstanceStopping, nil
			}
			return inspector.InstanceUnknown, nil
		}
	}
	return inspector.InstanceUnknown, fmt.Errorf("instance %s not found in %s", instanceID, region)
}

// StopInstance stops an instance and blocks until it reaches stopped.
func (s *Session) StopInstance(ctx context.Context, region, instanceID string) error {
	client, err := s.client(region)
	if err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if _, err := client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return fmt.Errorf("stop instance %s in %s: %w", instanceID, region, err)
	}

	waiter := ec2.NewInstanceStoppedWaiter(client)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	}, stopWaitTimeout); err != nil {
		return fmt.Errorf("wait for instance %s to stop: %w", instanceID, err)
	}
	return nil
}

// StartInstance starts a stopped instance. It does not wait for running.
func (s *Session) StartInstance(ctx context.Context, region, instanceID string) error {
	client, err := s.client(region)
	if err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if _, err := client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return fmt.Errorf("start instance %s in %s: %w", instanceID, region, err)
	}
	return nil
}

// ModifyInstanceType changes the instance type of a stopped instance.
func (s *Session) ModifyInstanceType(ctx context.Context, region, instanceID, instanceType string) error {
	client, err := s.client(region)
	if err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if _, err := client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId: aws.String(instanceID),
		InstanceType: &ec2types.AttributeValue{
			Value: aws.String(instanceType),
		},
	}); err != nil {
		return fmt.Errorf("modify instance %s to %s: %w", instanceID, instanceType, err)
	}
	return nil
}
