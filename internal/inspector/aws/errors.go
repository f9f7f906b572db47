package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"cloudtrim/internal/inspector"
)

// classify maps EC2 API error codes onto the inspector sentinels. Errors
// without a recognized code pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "InvalidSnapshot.InUse", "VolumeInUse", "InvalidIPAddress.InUse":
		return fmt.Errorf("%w: %s", inspector.ErrResourceInUse, apiErr.ErrorMessage())
	case "InvalidSnapshot.NotFound", "InvalidVolume.NotFound", "InvalidAllocationID.NotFound":
		return fmt.Errorf("%w: %s", inspector.ErrResourceGone, apiErr.ErrorMessage())
	}
	return err
}
