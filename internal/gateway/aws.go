package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"rdscope/internal/awsclient"
	"rdscope/internal/domain"
)

// rdsAPI is the slice of the RDS client the gateway uses. The paginator
// constructors accept it as well, which keeps the implementation testable
// against a fake client.
type rdsAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	DescribeDBSnapshots(ctx context.Context, params *rds.DescribeDBSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error)
	DescribeDBClusterSnapshots(ctx context.Context, params *rds.DescribeDBClusterSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterSnapshotsOutput, error)
	DescribeDBSubnetGroups(ctx context.Context, params *rds.DescribeDBSubnetGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSubnetGroupsOutput, error)
	DescribeDBParameterGroups(ctx context.Context, params *rds.DescribeDBParameterGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBParameterGroupsOutput, error)
	DescribeDBClusterParameterGroups(ctx context.Context, params *rds.DescribeDBClusterParameterGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterParameterGroupsOutput, error)
	DescribeOptionGroups(ctx context.Context, params *rds.DescribeOptionGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeOptionGroupsOutput, error)
	ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
}

type ec2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// AWSGateway implements Gateway against the RDS and EC2 provider surfaces
type AWSGateway struct {
	rds rdsAPI
	ec2 ec2API
}

// NewAWS builds a gateway from resolved AWS clients
func NewAWS(clients *awsclient.Clients) *AWSGateway {
	return &AWSGateway{rds: clients.RDS, ec2: clients.EC2}
}

// DescribePrimary resolves a DB instance or cluster into a full descriptor
func (g *AWSGateway) DescribePrimary(ctx context.Context, identifier string, kind domain.ResourceKind) (*domain.PrimaryResource, error) {
	if kind == domain.ResourceKindCluster {
		return g.describeCluster(ctx, identifier)
	}
	return g.describeInstance(ctx, identifier)
}

func (g *AWSGateway) describeInstance(ctx context.Context, identifier string) (*domain.PrimaryResource, error) {
	const op = "rds:DescribeDBInstances"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBInstancesOutput, error) {
		out, err := g.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
			DBInstanceIdentifier: aws.String(identifier),
		})
		return out, normalize(err, op, identifier)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.DBInstances) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, identifier, nil)
	}

	return mapDBInstance(out.DBInstances[0]), nil
}

func (g *AWSGateway) describeCluster(ctx context.Context, identifier string) (*domain.PrimaryResource, error) {
	const op = "rds:DescribeDBClusters"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBClustersOutput, error) {
		out, err := g.rds.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{
			DBClusterIdentifier: aws.String(identifier),
		})
		return out, normalize(err, op, identifier)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.DBClusters) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, identifier, nil)
	}

	return mapDBCluster(out.DBClusters[0]), nil
}

// DescribeSecondary resolves one secondary-resource reference. Security
// groups come from the EC2 surface; everything else from RDS.
func (g *AWSGateway) DescribeSecondary(ctx context.Context, category domain.Category, identifier string) (*domain.SecondaryResource, error) {
	switch category {
	case domain.CategorySecurityGroup:
		return g.describeSecurityGroup(ctx, identifier)
	case domain.CategorySubnetGroup:
		return g.describeSubnetGroup(ctx, identifier)
	case domain.CategoryParameterGroup:
		return g.describeParameterGroup(ctx, identifier)
	case domain.CategoryClusterParameterGroup:
		return g.describeClusterParameterGroup(ctx, identifier)
	case domain.CategoryOptionGroup:
		return g.describeOptionGroup(ctx, identifier)
	default:
		return nil, malformed("DescribeSecondary", identifier, fmt.Sprintf("unknown category %q", category))
	}
}

func (g *AWSGateway) describeSecurityGroup(ctx context.Context, groupID string) (*domain.SecondaryResource, error) {
	const op = "ec2:DescribeSecurityGroups"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*ec2.DescribeSecurityGroupsOutput, error) {
		out, err := g.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			GroupIds: []string{groupID},
		})
		return out, normalize(err, op, groupID)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.SecurityGroups) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, groupID, nil)
	}

	return mapSecurityGroup(out.SecurityGroups[0]), nil
}

func (g *AWSGateway) describeSubnetGroup(ctx context.Context, name string) (*domain.SecondaryResource, error) {
	const op = "rds:DescribeDBSubnetGroups"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBSubnetGroupsOutput, error) {
		out, err := g.rds.DescribeDBSubnetGroups(ctx, &rds.DescribeDBSubnetGroupsInput{
			DBSubnetGroupName: aws.String(name),
		})
		return out, normalize(err, op, name)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.DBSubnetGroups) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, name, nil)
	}

	sg := out.DBSubnetGroups[0]
	sec := &domain.SecondaryResource{
		Identifier:  aws.ToString(sg.DBSubnetGroupName),
		Category:    domain.CategorySubnetGroup,
		Name:        aws.ToString(sg.DBSubnetGroupName),
		Description: aws.ToString(sg.DBSubnetGroupDescription),
		VpcID:       aws.ToString(sg.VpcId),
		Status:      aws.ToString(sg.SubnetGroupStatus),
	}
	zones := make(map[string]bool)
	for _, subnet := range sg.Subnets {
		if subnet.SubnetIdentifier != nil {
			sec.SubnetIDs = append(sec.SubnetIDs, *subnet.SubnetIdentifier)
		}
		if subnet.SubnetAvailabilityZone != nil && subnet.SubnetAvailabilityZone.Name != nil {
			zones[*subnet.SubnetAvailabilityZone.Name] = true
		}
	}
	for zone := range zones {
		sec.AvailabilityZones = append(sec.AvailabilityZones, zone)
	}
	sort.Strings(sec.AvailabilityZones)
	sec.Tags = g.tagsBestEffort(ctx, aws.ToString(sg.DBSubnetGroupArn))
	return sec, nil
}

func (g *AWSGateway) describeParameterGroup(ctx context.Context, name string) (*domain.SecondaryResource, error) {
	const op = "rds:DescribeDBParameterGroups"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBParameterGroupsOutput, error) {
		out, err := g.rds.DescribeDBParameterGroups(ctx, &rds.DescribeDBParameterGroupsInput{
			DBParameterGroupName: aws.String(name),
		})
		return out, normalize(err, op, name)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.DBParameterGroups) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, name, nil)
	}

	pg := out.DBParameterGroups[0]
	return &domain.SecondaryResource{
		Identifier:  aws.ToString(pg.DBParameterGroupName),
		Category:    domain.CategoryParameterGroup,
		Name:        aws.ToString(pg.DBParameterGroupName),
		Family:      aws.ToString(pg.DBParameterGroupFamily),
		Description: aws.ToString(pg.Description),
		Tags:        g.tagsBestEffort(ctx, aws.ToString(pg.DBParameterGroupArn)),
	}, nil
}

func (g *AWSGateway) describeClusterParameterGroup(ctx context.Context, name string) (*domain.SecondaryResource, error) {
	const op = "rds:DescribeDBClusterParameterGroups"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBClusterParameterGroupsOutput, error) {
		out, err := g.rds.DescribeDBClusterParameterGroups(ctx, &rds.DescribeDBClusterParameterGroupsInput{
			DBClusterParameterGroupName: aws.String(name),
		})
		return out, normalize(err, op, name)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.DBClusterParameterGroups) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, name, nil)
	}

	pg := out.DBClusterParameterGroups[0]
	return &domain.SecondaryResource{
		Identifier:  aws.ToString(pg.DBClusterParameterGroupName),
		Category:    domain.CategoryClusterParameterGroup,
		Name:        aws.ToString(pg.DBClusterParameterGroupName),
		Family:      aws.ToString(pg.DBParameterGroupFamily),
		Description: aws.ToString(pg.Description),
		Tags:        g.tagsBestEffort(ctx, aws.ToString(pg.DBClusterParameterGroupArn)),
	}, nil
}

func (g *AWSGateway) describeOptionGroup(ctx context.Context, name string) (*domain.SecondaryResource, error) {
	const op = "rds:DescribeOptionGroups"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeOptionGroupsOutput, error) {
		out, err := g.rds.DescribeOptionGroups(ctx, &rds.DescribeOptionGroupsInput{
			OptionGroupName: aws.String(name),
		})
		return out, normalize(err, op, name)
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.OptionGroupsList) == 0 {
		return nil, domain.NewFailure(domain.FailureNotFound, op, name, nil)
	}

	og := out.OptionGroupsList[0]
	sec := &domain.SecondaryResource{
		Identifier:  aws.ToString(og.OptionGroupName),
		Category:    domain.CategoryOptionGroup,
		Name:        aws.ToString(og.OptionGroupName),
		Description: aws.ToString(og.OptionGroupDescription),
		EngineName:  aws.ToString(og.EngineName),
		VpcID:       aws.ToString(og.VpcId),
	}
	for _, option := range og.Options {
		if option.OptionName != nil {
			sec.OptionNames = append(sec.OptionNames, *option.OptionName)
		}
	}
	sec.Tags = g.tagsBestEffort(ctx, aws.ToString(og.OptionGroupArn))
	return sec, nil
}

// ListBackups drains the full snapshot listing for an owner. The
// DBInstanceIdentifier/DBClusterIdentifier input filter is a provider-side
// optimization; callers re-check ownership on the returned artifacts.
func (g *AWSGateway) ListBackups(ctx context.Context, ownerIdentifier string, kind domain.ResourceKind, snapshotType domain.SnapshotType) ([]domain.BackupArtifact, error) {
	if kind == domain.ResourceKindCluster {
		return g.listClusterSnapshots(ctx, ownerIdentifier, snapshotType)
	}
	return g.listInstanceSnapshots(ctx, ownerIdentifier, snapshotType)
}

func (g *AWSGateway) listInstanceSnapshots(ctx context.Context, ownerIdentifier string, snapshotType domain.SnapshotType) ([]domain.BackupArtifact, error) {
	const op = "rds:DescribeDBSnapshots"

	paginator := rds.NewDescribeDBSnapshotsPaginator(g.rds, &rds.DescribeDBSnapshotsInput{
		DBInstanceIdentifier: aws.String(ownerIdentifier),
		SnapshotType:         aws.String(string(snapshotType)),
	})

	var artifacts []domain.BackupArtifact
	for paginator.HasMorePages() {
		page, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBSnapshotsOutput, error) {
			out, err := paginator.NextPage(ctx)
			return out, normalize(err, op, ownerIdentifier)
		})
		if err != nil {
			return nil, err
		}
		for _, snap := range page.DBSnapshots {
			artifacts = append(artifacts, mapDBSnapshot(snap))
		}
	}
	return artifacts, nil
}

func (g *AWSGateway) listClusterSnapshots(ctx context.Context, ownerIdentifier string, snapshotType domain.SnapshotType) ([]domain.BackupArtifact, error) {
	const op = "rds:DescribeDBClusterSnapshots"

	paginator := rds.NewDescribeDBClusterSnapshotsPaginator(g.rds, &rds.DescribeDBClusterSnapshotsInput{
		DBClusterIdentifier: aws.String(ownerIdentifier),
		SnapshotType:        aws.String(string(snapshotType)),
	})

	var artifacts []domain.BackupArtifact
	for paginator.HasMorePages() {
		page, err := withRetry(ctx, op, func(ctx context.Context) (*rds.DescribeDBClusterSnapshotsOutput, error) {
			out, err := paginator.NextPage(ctx)
			return out, normalize(err, op, ownerIdentifier)
		})
		if err != nil {
			return nil, err
		}
		for _, snap := range page.DBClusterSnapshots {
			artifacts = append(artifacts, mapDBClusterSnapshot(snap))
		}
	}
	return artifacts, nil
}

// ListTags returns the tag set of an RDS resource by ARN
func (g *AWSGateway) ListTags(ctx context.Context, resourceARN string) (map[string]string, error) {
	const op = "rds:ListTagsForResource"

	out, err := withRetry(ctx, op, func(ctx context.Context) (*rds.ListTagsForResourceOutput, error) {
		out, err := g.rds.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
			ResourceName: aws.String(resourceARN),
		})
		return out, normalize(err, op, resourceARN)
	})
	if err != nil {
		return nil, err
	}
	return rdsTagsToMap(out.TagList), nil
}

// tagsBestEffort fetches tags for a resource, degrading to an empty map on
// failure. A tag lookup is never worth failing a resolution over.
func (g *AWSGateway) tagsBestEffort(ctx context.Context, resourceARN string) map[string]string {
	if resourceARN == "" {
		return nil
	}
	tags, err := g.ListTags(ctx, resourceARN)
	if err != nil {
		return map[string]string{}
	}
	return tags
}

func mapDBInstance(db rdstypes.DBInstance) *domain.PrimaryResource {
	primary := &domain.PrimaryResource{
		Identifier:        aws.ToString(db.DBInstanceIdentifier),
		Kind:              domain.ResourceKindInstance,
		ARN:               aws.ToString(db.DBInstanceArn),
		Engine:            aws.ToString(db.Engine),
		EngineVersion:     aws.ToString(db.EngineVersion),
		Status:            aws.ToString(db.DBInstanceStatus),
		InstanceClass:     aws.ToString(db.DBInstanceClass),
		AllocatedStorage:  aws.ToInt32(db.AllocatedStorage),
		StorageType:       aws.ToString(db.StorageType),
		StorageEncrypted:  aws.ToBool(db.StorageEncrypted),
		MultiAZ:           aws.ToBool(db.MultiAZ),
		AvailabilityZone:  aws.ToString(db.AvailabilityZone),
		ClusterIdentifier: aws.ToString(db.DBClusterIdentifier),
		Tags:              rdsTagsToMap(db.TagList),
	}
	if db.InstanceCreateTime != nil {
		primary.CreatedAt = *db.InstanceCreateTime
	}
	if db.Endpoint != nil {
		primary.Endpoint = aws.ToString(db.Endpoint.Address)
		primary.Port = aws.ToInt32(db.Endpoint.Port)
	}
	if db.DBSubnetGroup != nil {
		primary.VpcID = aws.ToString(db.DBSubnetGroup.VpcId)
		primary.References.SubnetGroupName = aws.ToString(db.DBSubnetGroup.DBSubnetGroupName)
	}
	for _, sg := range db.VpcSecurityGroups {
		if sg.VpcSecurityGroupId != nil {
			primary.References.SecurityGroupIDs = append(primary.References.SecurityGroupIDs, *sg.VpcSecurityGroupId)
		}
	}
	// Instances carry at most one parameter group and one option group that
	// matter for billing; take the first of each membership list
	for _, pg := range db.DBParameterGroups {
		if pg.DBParameterGroupName != nil {
			primary.References.ParameterGroupName = *pg.DBParameterGroupName
			break
		}
	}
	for _, og := range db.OptionGroupMemberships {
		if og.OptionGroupName != nil {
			primary.References.OptionGroupName = *og.OptionGroupName
			break
		}
	}
	return primary
}

func mapDBCluster(cluster rdstypes.DBCluster) *domain.PrimaryResource {
	primary := &domain.PrimaryResource{
		Identifier:        aws.ToString(cluster.DBClusterIdentifier),
		Kind:              domain.ResourceKindCluster,
		ARN:               aws.ToString(cluster.DBClusterArn),
		Engine:            aws.ToString(cluster.Engine),
		EngineVersion:     aws.ToString(cluster.EngineVersion),
		Status:            aws.ToString(cluster.Status),
		AllocatedStorage:  aws.ToInt32(cluster.AllocatedStorage),
		StorageEncrypted:  aws.ToBool(cluster.StorageEncrypted),
		MultiAZ:           aws.ToBool(cluster.MultiAZ),
		AvailabilityZones: cluster.AvailabilityZones,
		Endpoint:          aws.ToString(cluster.Endpoint),
		ReaderEndpoint:    aws.ToString(cluster.ReaderEndpoint),
		Port:              aws.ToInt32(cluster.Port),
		Tags:              rdsTagsToMap(cluster.TagList),
	}
	if cluster.ClusterCreateTime != nil {
		primary.CreatedAt = *cluster.ClusterCreateTime
	}
	primary.References.SubnetGroupName = aws.ToString(cluster.DBSubnetGroup)
	primary.References.ClusterParameterGroupName = aws.ToString(cluster.DBClusterParameterGroup)
	for _, sg := range cluster.VpcSecurityGroups {
		if sg.VpcSecurityGroupId != nil {
			primary.References.SecurityGroupIDs = append(primary.References.SecurityGroupIDs, *sg.VpcSecurityGroupId)
		}
	}
	for _, member := range cluster.DBClusterMembers {
		if member.DBInstanceIdentifier == nil {
			continue
		}
		primary.References.MemberIdentifiers = append(primary.References.MemberIdentifiers, *member.DBInstanceIdentifier)
		primary.Members = append(primary.Members, domain.MemberRef{
			Identifier:    *member.DBInstanceIdentifier,
			IsWriter:      aws.ToBool(member.IsClusterWriter),
			PromotionTier: aws.ToInt32(member.PromotionTier),
		})
	}
	return primary
}

func mapSecurityGroup(sg ec2types.SecurityGroup) *domain.SecondaryResource {
	sec := &domain.SecondaryResource{
		Identifier:       aws.ToString(sg.GroupId),
		Category:         domain.CategorySecurityGroup,
		Name:             aws.ToString(sg.GroupName),
		Description:      aws.ToString(sg.Description),
		VpcID:            aws.ToString(sg.VpcId),
		IngressRuleCount: len(sg.IpPermissions),
		EgressRuleCount:  len(sg.IpPermissionsEgress),
		Tags:             ec2TagsToMap(sg.Tags),
	}

	// Collect security groups referenced by the rules so the correlator can
	// expand them one level
	seen := make(map[string]bool)
	for _, permissions := range [][]ec2types.IpPermission{sg.IpPermissions, sg.IpPermissionsEgress} {
		for _, permission := range permissions {
			for _, pair := range permission.UserIdGroupPairs {
				id := aws.ToString(pair.GroupId)
				if id == "" || id == sec.Identifier || seen[id] {
					continue
				}
				seen[id] = true
				sec.ReferencedGroupIDs = append(sec.ReferencedGroupIDs, id)
			}
		}
	}
	return sec
}

func mapDBSnapshot(snap rdstypes.DBSnapshot) domain.BackupArtifact {
	artifact := domain.BackupArtifact{
		Identifier:       aws.ToString(snap.DBSnapshotIdentifier),
		Kind:             domain.BackupKindSnapshot,
		OriginIdentifier: aws.ToString(snap.DBInstanceIdentifier),
		SnapshotType:     domain.SnapshotType(aws.ToString(snap.SnapshotType)),
		Status:           aws.ToString(snap.Status),
		AllocatedStorage: aws.ToInt32(snap.AllocatedStorage),
		Encrypted:        aws.ToBool(snap.Encrypted),
		Engine:           aws.ToString(snap.Engine),
		EngineVersion:    aws.ToString(snap.EngineVersion),
		Tags:             rdsTagsToMap(snap.TagList),
	}
	if snap.SnapshotCreateTime != nil {
		artifact.CreatedAt = *snap.SnapshotCreateTime
	}
	return artifact
}

func mapDBClusterSnapshot(snap rdstypes.DBClusterSnapshot) domain.BackupArtifact {
	artifact := domain.BackupArtifact{
		Identifier:       aws.ToString(snap.DBClusterSnapshotIdentifier),
		Kind:             domain.BackupKindClusterSnapshot,
		OriginIdentifier: aws.ToString(snap.DBClusterIdentifier),
		SnapshotType:     domain.SnapshotType(aws.ToString(snap.SnapshotType)),
		Status:           aws.ToString(snap.Status),
		AllocatedStorage: aws.ToInt32(snap.AllocatedStorage),
		Encrypted:        aws.ToBool(snap.StorageEncrypted),
		Engine:           aws.ToString(snap.Engine),
		EngineVersion:    aws.ToString(snap.EngineVersion),
		Tags:             rdsTagsToMap(snap.TagList),
	}
	if snap.SnapshotCreateTime != nil {
		artifact.CreatedAt = *snap.SnapshotCreateTime
	}
	return artifact
}

func rdsTagsToMap(tags []rdstypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return out
}

func ec2TagsToMap(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return out
}
