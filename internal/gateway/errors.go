package gateway

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"rdscope/internal/domain"
)

var notFoundCodes = map[string]bool{
	"DBInstanceNotFound":             true,
	"DBInstanceNotFoundFault":        true,
	"DBClusterNotFoundFault":         true,
	"DBSnapshotNotFound":             true,
	"DBClusterSnapshotNotFoundFault": true,
	"DBSubnetGroupNotFoundFault":     true,
	"DBParameterGroupNotFound":       true,
	"DBParameterGroupNotFoundFault":  true,
	"OptionGroupNotFoundFault":       true,
	"InvalidGroup.NotFound":          true,
	"InvalidGroupId.Malformed":       true,
}

var accessDeniedCodes = map[string]bool{
	"AccessDenied":          true,
	"AccessDeniedException": true,
	"UnauthorizedOperation": true,
	"UnauthorizedException": true,
}

var rateLimitedCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"RequestThrottled":         true,
	"SlowDown":                 true,
}

// normalize maps a raw provider error into the domain failure taxonomy.
// Anything that is not a recognized client fault is treated as Transient so
// the retry layer gets a chance at it.
func normalize(err error, op, resource string) error {
	if err == nil {
		return nil
	}

	var f *domain.Failure
	if errors.As(err, &f) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewFailure(domain.FailureTransient, op, resource, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case notFoundCodes[code]:
			return domain.NewFailure(domain.FailureNotFound, op, resource, err)
		case accessDeniedCodes[code]:
			return domain.NewFailure(domain.FailureAccessDenied, op, resource, err)
		case rateLimitedCodes[code]:
			return domain.NewFailure(domain.FailureRateLimited, op, resource, err)
		case apiErr.ErrorFault() == smithy.FaultClient:
			// Unrecognized client fault: the request shape or response was
			// not what we expected, retrying will not help
			return domain.NewFailure(domain.FailureMalformed, op, resource, err)
		}
	}

	return domain.NewFailure(domain.FailureTransient, op, resource, err)
}

// malformed marks a payload that came back without the fields we require
func malformed(op, resource, detail string) error {
	return domain.NewFailure(domain.FailureMalformed, op, resource, errors.New(detail))
}
