package gateway

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"

	"rdscope/internal/domain"
)

// fakeRDS implements rdsAPI with per-call function hooks. Unset hooks
// return empty outputs so tests only wire what they exercise.
type fakeRDS struct {
	describeInstances        func(*rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error)
	describeClusters         func(*rds.DescribeDBClustersInput) (*rds.DescribeDBClustersOutput, error)
	describeSnapshots        func(*rds.DescribeDBSnapshotsInput) (*rds.DescribeDBSnapshotsOutput, error)
	describeClusterSnapshots func(*rds.DescribeDBClusterSnapshotsInput) (*rds.DescribeDBClusterSnapshotsOutput, error)
	describeSubnetGroups     func(*rds.DescribeDBSubnetGroupsInput) (*rds.DescribeDBSubnetGroupsOutput, error)
	listTags                 func(*rds.ListTagsForResourceInput) (*rds.ListTagsForResourceOutput, error)
}

func (f *fakeRDS) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if f.describeInstances != nil {
		return f.describeInstances(params)
	}
	return &rds.DescribeDBInstancesOutput{}, nil
}

func (f *fakeRDS) DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error) {
	if f.describeClusters != nil {
		return f.describeClusters(params)
	}
	return &rds.DescribeDBClustersOutput{}, nil
}

func (f *fakeRDS) DescribeDBSnapshots(ctx context.Context, params *rds.DescribeDBSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error) {
	if f.describeSnapshots != nil {
		return f.describeSnapshots(params)
	}
	return &rds.DescribeDBSnapshotsOutput{}, nil
}

func (f *fakeRDS) DescribeDBClusterSnapshots(ctx context.Context, params *rds.DescribeDBClusterSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterSnapshotsOutput, error) {
	if f.describeClusterSnapshots != nil {
		return f.describeClusterSnapshots(params)
	}
	return &rds.DescribeDBClusterSnapshotsOutput{}, nil
}

func (f *fakeRDS) DescribeDBSubnetGroups(ctx context.Context, params *rds.DescribeDBSubnetGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSubnetGroupsOutput, error) {
	if f.describeSubnetGroups != nil {
		return f.describeSubnetGroups(params)
	}
	return &rds.DescribeDBSubnetGroupsOutput{}, nil
}

func (f *fakeRDS) DescribeDBParameterGroups(ctx context.Context, params *rds.DescribeDBParameterGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBParameterGroupsOutput, error) {
	return &rds.DescribeDBParameterGroupsOutput{}, nil
}

func (f *fakeRDS) DescribeDBClusterParameterGroups(ctx context.Context, params *rds.DescribeDBClusterParameterGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterParameterGroupsOutput, error) {
	return &rds.DescribeDBClusterParameterGroupsOutput{}, nil
}

func (f *fakeRDS) DescribeOptionGroups(ctx context.Context, params *rds.DescribeOptionGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeOptionGroupsOutput, error) {
	return &rds.DescribeOptionGroupsOutput{}, nil
}

func (f *fakeRDS) ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error) {
	if f.listTags != nil {
		return f.listTags(params)
	}
	return &rds.ListTagsForResourceOutput{}, nil
}

type fakeEC2 struct {
	describeSecurityGroups func(*ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error)
}

func (f *fakeEC2) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if f.describeSecurityGroups != nil {
		return f.describeSecurityGroups(params)
	}
	return &ec2.DescribeSecurityGroupsOutput{}, nil
}

func TestDescribePrimary_Instance_MapsReferences(t *testing.T) {
	// SCENARIO: a full DB instance record from the provider
	// EXPECTED: identity fields plus the complete reference payload, taking
	// the first parameter group and option group membership
	gw := &AWSGateway{ec2: &fakeEC2{}, rds: &fakeRDS{
		describeInstances: func(in *rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error) {
			if aws.ToString(in.DBInstanceIdentifier) != "db-1" {
				t.Errorf("Unexpected identifier filter %q", aws.ToString(in.DBInstanceIdentifier))
			}
			return &rds.DescribeDBInstancesOutput{DBInstances: []rdstypes.DBInstance{{
				DBInstanceIdentifier: aws.String("db-1"),
				Engine:               aws.String("mysql"),
				EngineVersion:        aws.String("8.0.35"),
				DBInstanceStatus:     aws.String("available"),
				DBInstanceClass:      aws.String("db.t3.medium"),
				AllocatedStorage:     aws.Int32(100),
				Endpoint: &rdstypes.Endpoint{
					Address: aws.String("db-1.abc.us-east-1.rds.amazonaws.com"),
					Port:    aws.Int32(3306),
				},
				DBSubnetGroup: &rdstypes.DBSubnetGroup{
					DBSubnetGroupName: aws.String("subnets"),
					VpcId:             aws.String("vpc-1"),
				},
				VpcSecurityGroups: []rdstypes.VpcSecurityGroupMembership{
					{VpcSecurityGroupId: aws.String("sg-1")},
					{VpcSecurityGroupId: aws.String("sg-2")},
				},
				DBParameterGroups: []rdstypes.DBParameterGroupStatus{
					{DBParameterGroupName: aws.String("params-a")},
					{DBParameterGroupName: aws.String("params-b")},
				},
				OptionGroupMemberships: []rdstypes.OptionGroupMembership{
					{OptionGroupName: aws.String("options")},
				},
			}}}, nil
		},
	}}

	primary, err := gw.DescribePrimary(context.Background(), "db-1", domain.ResourceKindInstance)
	if err != nil {
		t.Fatalf("DescribePrimary failed: %v", err)
	}

	if primary.Kind != domain.ResourceKindInstance || primary.Identifier != "db-1" {
		t.Errorf("Identity mismatch: %+v", primary)
	}
	if primary.Endpoint != "db-1.abc.us-east-1.rds.amazonaws.com" || primary.Port != 3306 {
		t.Errorf("Endpoint mismatch: %s:%d", primary.Endpoint, primary.Port)
	}
	if primary.VpcID != "vpc-1" {
		t.Errorf("VPC not taken from the subnet group: %q", primary.VpcID)
	}
	refs := primary.References
	if len(refs.SecurityGroupIDs) != 2 || refs.SubnetGroupName != "subnets" {
		t.Errorf("Reference payload mismatch: %+v", refs)
	}
	if refs.ParameterGroupName != "params-a" {
		t.Errorf("Expected first parameter group membership, got %q", refs.ParameterGroupName)
	}
	if refs.OptionGroupName != "options" {
		t.Errorf("Option group mismatch: %q", refs.OptionGroupName)
	}
}

func TestDescribePrimary_EmptyListing_NotFound(t *testing.T) {
	// SCENARIO: the call succeeds but matches nothing
	// EXPECTED: NotFound, same as an explicit not-found fault
	gw := &AWSGateway{rds: &fakeRDS{}, ec2: &fakeEC2{}}

	_, err := gw.DescribePrimary(context.Background(), "ghost", domain.ResourceKindInstance)
	if !domain.IsNotFound(err) {
		t.Errorf("Expected NotFound for empty listing, got %v", err)
	}
}

func TestDescribePrimary_Cluster_MapsMemberRoles(t *testing.T) {
	gw := &AWSGateway{ec2: &fakeEC2{}, rds: &fakeRDS{
		describeClusters: func(in *rds.DescribeDBClustersInput) (*rds.DescribeDBClustersOutput, error) {
			return &rds.DescribeDBClustersOutput{DBClusters: []rdstypes.DBCluster{{
				DBClusterIdentifier:     aws.String("cluster-1"),
				Engine:                  aws.String("aurora-mysql"),
				Status:                  aws.String("available"),
				DBSubnetGroup:           aws.String("subnets"),
				DBClusterParameterGroup: aws.String("cluster-params"),
				ReaderEndpoint:          aws.String("cluster-1.ro.rds.amazonaws.com"),
				VpcSecurityGroups: []rdstypes.VpcSecurityGroupMembership{
					{VpcSecurityGroupId: aws.String("sg-1")},
				},
				DBClusterMembers: []rdstypes.DBClusterMember{
					{DBInstanceIdentifier: aws.String("cluster-1-a"), IsClusterWriter: aws.Bool(true), PromotionTier: aws.Int32(0)},
					{DBInstanceIdentifier: aws.String("cluster-1-b"), IsClusterWriter: aws.Bool(false), PromotionTier: aws.Int32(1)},
				},
			}}}, nil
		},
	}}

	primary, err := gw.DescribePrimary(context.Background(), "cluster-1", domain.ResourceKindCluster)
	if err != nil {
		t.Fatalf("DescribePrimary failed: %v", err)
	}

	if primary.Kind != domain.ResourceKindCluster {
		t.Errorf("Kind mismatch: %s", primary.Kind)
	}
	if primary.ReaderEndpoint != "cluster-1.ro.rds.amazonaws.com" {
		t.Errorf("Reader endpoint mismatch: %q", primary.ReaderEndpoint)
	}
	if primary.References.ClusterParameterGroupName != "cluster-params" {
		t.Errorf("Cluster parameter group mismatch: %+v", primary.References)
	}
	if len(primary.References.MemberIdentifiers) != 2 || len(primary.Members) != 2 {
		t.Fatalf("Member extraction mismatch: %+v", primary)
	}
	if !primary.Members[0].IsWriter || primary.Members[0].Identifier != "cluster-1-a" {
		t.Errorf("Writer role lost: %+v", primary.Members[0])
	}
	if primary.Members[1].PromotionTier != 1 {
		t.Errorf("Promotion tier lost: %+v", primary.Members[1])
	}
}

func TestDescribeSecondary_SecurityGroup_CollectsRuleReferences(t *testing.T) {
	// SCENARIO: security group whose rules reference itself, another group
	// twice, and a third group
	// EXPECTED: self-references and duplicates excluded from the one-hop
	// expansion list
	gw := &AWSGateway{rds: &fakeRDS{}, ec2: &fakeEC2{
		describeSecurityGroups: func(in *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error) {
			return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: []ec2types.SecurityGroup{{
				GroupId:   aws.String("sg-1"),
				GroupName: aws.String("db"),
				VpcId:     aws.String("vpc-1"),
				IpPermissions: []ec2types.IpPermission{{
					UserIdGroupPairs: []ec2types.UserIdGroupPair{
						{GroupId: aws.String("sg-1")},
						{GroupId: aws.String("sg-app")},
						{GroupId: aws.String("sg-app")},
					},
				}},
				IpPermissionsEgress: []ec2types.IpPermission{{
					UserIdGroupPairs: []ec2types.UserIdGroupPair{
						{GroupId: aws.String("sg-ops")},
					},
				}},
			}}}, nil
		},
	}}

	secondary, err := gw.DescribeSecondary(context.Background(), domain.CategorySecurityGroup, "sg-1")
	if err != nil {
		t.Fatalf("DescribeSecondary failed: %v", err)
	}

	if secondary.IngressRuleCount != 1 || secondary.EgressRuleCount != 1 {
		t.Errorf("Rule counts mismatch: %d/%d", secondary.IngressRuleCount, secondary.EgressRuleCount)
	}
	want := []string{"sg-app", "sg-ops"}
	if len(secondary.ReferencedGroupIDs) != len(want) {
		t.Fatalf("Referenced groups = %v, want %v", secondary.ReferencedGroupIDs, want)
	}
	for i, id := range want {
		if secondary.ReferencedGroupIDs[i] != id {
			t.Errorf("Referenced groups = %v, want %v", secondary.ReferencedGroupIDs, want)
		}
	}
}

func TestDescribeSecondary_UnknownCategory_Malformed(t *testing.T) {
	gw := &AWSGateway{rds: &fakeRDS{}, ec2: &fakeEC2{}}

	_, err := gw.DescribeSecondary(context.Background(), domain.Category("GLACIER_VAULT"), "x")
	if domain.KindOf(err) != domain.FailureMalformed {
		t.Errorf("Expected Malformed for unknown category, got %v", err)
	}
}

func TestDescribeSecondary_SubnetGroup_SortedZones(t *testing.T) {
	gw := &AWSGateway{ec2: &fakeEC2{}, rds: &fakeRDS{
		describeSubnetGroups: func(in *rds.DescribeDBSubnetGroupsInput) (*rds.DescribeDBSubnetGroupsOutput, error) {
			return &rds.DescribeDBSubnetGroupsOutput{DBSubnetGroups: []rdstypes.DBSubnetGroup{{
				DBSubnetGroupName: aws.String("subnets"),
				VpcId:             aws.String("vpc-1"),
				Subnets: []rdstypes.Subnet{
					{SubnetIdentifier: aws.String("subnet-b"), SubnetAvailabilityZone: &rdstypes.AvailabilityZone{Name: aws.String("us-east-1c")}},
					{SubnetIdentifier: aws.String("subnet-a"), SubnetAvailabilityZone: &rdstypes.AvailabilityZone{Name: aws.String("us-east-1a")}},
					{SubnetIdentifier: aws.String("subnet-c"), SubnetAvailabilityZone: &rdstypes.AvailabilityZone{Name: aws.String("us-east-1a")}},
				},
			}}}, nil
		},
	}}

	secondary, err := gw.DescribeSecondary(context.Background(), domain.CategorySubnetGroup, "subnets")
	if err != nil {
		t.Fatalf("DescribeSecondary failed: %v", err)
	}

	if len(secondary.SubnetIDs) != 3 {
		t.Errorf("Subnet ids mismatch: %v", secondary.SubnetIDs)
	}
	wantZones := []string{"us-east-1a", "us-east-1c"}
	if len(secondary.AvailabilityZones) != 2 ||
		secondary.AvailabilityZones[0] != wantZones[0] ||
		secondary.AvailabilityZones[1] != wantZones[1] {
		t.Errorf("Zones = %v, want deduplicated sorted %v", secondary.AvailabilityZones, wantZones)
	}
}

func TestListBackups_DrainsPagination(t *testing.T) {
	// SCENARIO: the snapshot listing spans two pages
	// EXPECTED: both pages drained before returning
	calls := 0
	gw := &AWSGateway{ec2: &fakeEC2{}, rds: &fakeRDS{
		describeSnapshots: func(in *rds.DescribeDBSnapshotsInput) (*rds.DescribeDBSnapshotsOutput, error) {
			calls++
			if aws.ToString(in.SnapshotType) != "manual" {
				t.Errorf("Snapshot type filter missing: %q", aws.ToString(in.SnapshotType))
			}
			if in.Marker == nil {
				return &rds.DescribeDBSnapshotsOutput{
					DBSnapshots: []rdstypes.DBSnapshot{{
						DBSnapshotIdentifier: aws.String("snap-1"),
						DBInstanceIdentifier: aws.String("db-1"),
						SnapshotType:         aws.String("manual"),
					}},
					Marker: aws.String("page-2"),
				}, nil
			}
			return &rds.DescribeDBSnapshotsOutput{
				DBSnapshots: []rdstypes.DBSnapshot{{
					DBSnapshotIdentifier: aws.String("snap-2"),
					DBInstanceIdentifier: aws.String("db-1"),
					SnapshotType:         aws.String("manual"),
				}},
			}, nil
		},
	}}

	artifacts, err := gw.ListBackups(context.Background(), "db-1", domain.ResourceKindInstance, domain.SnapshotTypeManual)
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected 2 pages fetched, got %d", calls)
	}
	if len(artifacts) != 2 {
		t.Fatalf("Expected 2 artifacts, got %v", artifacts)
	}
	if artifacts[0].Kind != domain.BackupKindSnapshot || artifacts[0].OriginIdentifier != "db-1" {
		t.Errorf("Artifact mapping mismatch: %+v", artifacts[0])
	}
}

func TestWithRetry_ThrottleThenSuccess(t *testing.T) {
	// SCENARIO: first call throttled, second call succeeds
	// EXPECTED: the caller sees only the success
	calls := 0
	gw := &AWSGateway{ec2: &fakeEC2{}, rds: &fakeRDS{
		describeInstances: func(in *rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error) {
			calls++
			if calls == 1 {
				return nil, &smithy.GenericAPIError{Code: "Throttling", Fault: smithy.FaultClient}
			}
			return &rds.DescribeDBInstancesOutput{DBInstances: []rdstypes.DBInstance{{
				DBInstanceIdentifier: aws.String("db-1"),
			}}}, nil
		},
	}}

	primary, err := gw.DescribePrimary(context.Background(), "db-1", domain.ResourceKindInstance)
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
	if primary.Identifier != "db-1" {
		t.Errorf("Wrong result after retry: %+v", primary)
	}
}

func TestWithRetry_AccessDenied_NotRetried(t *testing.T) {
	// SCENARIO: the call is denied
	// EXPECTED: exactly one attempt; permission failures never resolve by
	// retrying
	calls := 0
	gw := &AWSGateway{ec2: &fakeEC2{}, rds: &fakeRDS{
		describeInstances: func(in *rds.DescribeDBInstancesInput) (*rds.DescribeDBInstancesOutput, error) {
			calls++
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}
		},
	}}

	_, err := gw.DescribePrimary(context.Background(), "db-1", domain.ResourceKindInstance)
	if !domain.IsAccessDenied(err) {
		t.Fatalf("Expected AccessDenied, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Permanent failure retried: %d attempts", calls)
	}
}
