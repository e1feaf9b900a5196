package gateway

import (
	"context"

	"rdscope/internal/domain"
)

// Gateway is the narrow provider abstraction the discovery engine runs
// against. Implementations must fully drain pagination before returning
// list results and must normalize provider errors into domain.Failure so
// the engine never sees raw SDK errors.
//
// All operations are read-only with respect to the provider.
type Gateway interface {
	// DescribePrimary resolves the queried DB instance or cluster into a
	// full descriptor, including its embedded reference payload
	DescribePrimary(ctx context.Context, identifier string, kind domain.ResourceKind) (*domain.PrimaryResource, error)

	// DescribeSecondary resolves one secondary-resource reference into a
	// full descriptor
	DescribeSecondary(ctx context.Context, category domain.Category, identifier string) (*domain.SecondaryResource, error)

	// ListBackups returns the backup artifacts of the given snapshot type
	// for an owner. The provider-side owner filter is an optimization only;
	// callers apply the authoritative ownership check themselves.
	ListBackups(ctx context.Context, ownerIdentifier string, kind domain.ResourceKind, snapshotType domain.SnapshotType) ([]domain.BackupArtifact, error)

	// ListTags returns the tag set of a resource by its ARN
	ListTags(ctx context.Context, resourceARN string) (map[string]string, error)
}
