package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rdscope/internal/domain"
)

// fakeGateway is an in-memory Gateway for engine tests. Lookups can be
// failed per key, and a delay can be set to exercise timeout behavior.
// Returned descriptors are copies so callers mutating results (e.g. the
// correlator stamping Origin) never corrupt the fixture.
type fakeGateway struct {
	mu          sync.Mutex
	primaries   map[string]domain.PrimaryResource
	secondaries map[string]domain.SecondaryResource
	snapshots   []domain.BackupArtifact
	failures    map[string]error
	// lookupDelay stalls secondary and backup lookups; primary fetches stay
	// immediate so timeout tests get past the fatal-primary phase
	lookupDelay time.Duration
	calls       map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		primaries:   make(map[string]domain.PrimaryResource),
		secondaries: make(map[string]domain.SecondaryResource),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

func primaryKey(kind domain.ResourceKind, identifier string) string {
	return fmt.Sprintf("primary/%s/%s", kind, identifier)
}

func secondaryKeyOf(category domain.Category, identifier string) string {
	return fmt.Sprintf("secondary/%s/%s", category, identifier)
}

func backupsKey(owner string, snapshotType domain.SnapshotType) string {
	return fmt.Sprintf("backups/%s/%s", owner, snapshotType)
}

func (f *fakeGateway) addPrimary(p domain.PrimaryResource) {
	f.primaries[primaryKey(p.Kind, p.Identifier)] = p
}

func (f *fakeGateway) addSecondary(s domain.SecondaryResource) {
	f.secondaries[secondaryKeyOf(s.Category, s.Identifier)] = s
}

func (f *fakeGateway) failWith(key string, err error) {
	f.failures[key] = err
}

func (f *fakeGateway) wait(ctx context.Context) error {
	if f.lookupDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.lookupDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeGateway) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	return f.failures[key]
}

func (f *fakeGateway) DescribePrimary(ctx context.Context, identifier string, kind domain.ResourceKind) (*domain.PrimaryResource, error) {
	key := primaryKey(kind, identifier)
	if err := f.record(key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	p, ok := f.primaries[key]
	f.mu.Unlock()
	if !ok {
		return nil, domain.NewFailure(domain.FailureNotFound, "DescribePrimary", identifier, nil)
	}
	out := p
	return &out, nil
}

func (f *fakeGateway) DescribeSecondary(ctx context.Context, category domain.Category, identifier string) (*domain.SecondaryResource, error) {
	key := secondaryKeyOf(category, identifier)
	if err := f.record(key); err != nil {
		return nil, err
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	s, ok := f.secondaries[key]
	f.mu.Unlock()
	if !ok {
		return nil, domain.NewFailure(domain.FailureNotFound, "DescribeSecondary", identifier, nil)
	}
	out := s
	return &out, nil
}

// ListBackups deliberately does NOT filter by owner: the provider-side owner
// filter is an optimization real backends may apply loosely, and the
// correlator's own ownership check has to hold regardless.
func (f *fakeGateway) ListBackups(ctx context.Context, ownerIdentifier string, kind domain.ResourceKind, snapshotType domain.SnapshotType) ([]domain.BackupArtifact, error) {
	key := backupsKey(ownerIdentifier, snapshotType)
	if err := f.record(key); err != nil {
		return nil, err
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	wantKind := domain.BackupKindSnapshot
	if kind == domain.ResourceKindCluster {
		wantKind = domain.BackupKindClusterSnapshot
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BackupArtifact
	for _, artifact := range f.snapshots {
		if artifact.Kind == wantKind && artifact.SnapshotType == snapshotType {
			out = append(out, artifact)
		}
	}
	return out, nil
}

func (f *fakeGateway) ListTags(ctx context.Context, resourceARN string) (map[string]string, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeGateway) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// mysqlInstanceFixture populates the fake with a standalone MySQL instance:
// two security groups, a subnet group, a parameter group, an option group,
// one manual and one automated snapshot, plus a foreign snapshot that must
// be dropped by the ownership check.
func mysqlInstanceFixture(f *fakeGateway) {
	f.addPrimary(domain.PrimaryResource{
		Identifier:       "my-mysql-instance",
		Kind:             domain.ResourceKindInstance,
		Engine:           "mysql",
		EngineVersion:    "8.0.35",
		Status:           "available",
		InstanceClass:    "db.t3.medium",
		AllocatedStorage: 100,
		References: domain.ReferencePayload{
			SecurityGroupIDs:   []string{"sg-aaa", "sg-bbb"},
			SubnetGroupName:    "my-subnet-group",
			ParameterGroupName: "my-param-group",
			OptionGroupName:    "my-option-group",
		},
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "sg-aaa", Category: domain.CategorySecurityGroup,
		Name: "app-db", VpcID: "vpc-1", IngressRuleCount: 2, EgressRuleCount: 1,
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "sg-bbb", Category: domain.CategorySecurityGroup,
		Name: "ops-db", VpcID: "vpc-1", IngressRuleCount: 1, EgressRuleCount: 1,
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "my-subnet-group", Category: domain.CategorySubnetGroup,
		Name: "my-subnet-group", VpcID: "vpc-1",
		SubnetIDs: []string{"subnet-1", "subnet-2"},
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "my-param-group", Category: domain.CategoryParameterGroup,
		Name: "my-param-group", Family: "mysql8.0",
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "my-option-group", Category: domain.CategoryOptionGroup,
		Name: "my-option-group",
	})
	f.snapshots = append(f.snapshots,
		domain.BackupArtifact{
			Identifier: "my-mysql-instance-final", Kind: domain.BackupKindSnapshot,
			OriginIdentifier: "my-mysql-instance", SnapshotType: domain.SnapshotTypeManual,
			AllocatedStorage: 100,
		},
		domain.BackupArtifact{
			Identifier: "rds:my-mysql-instance-2026-08-27", Kind: domain.BackupKindSnapshot,
			OriginIdentifier: "my-mysql-instance", SnapshotType: domain.SnapshotTypeAutomated,
			AllocatedStorage: 100,
		},
		// Named like ours but owned by a different instance; a naming-pattern
		// match must never attribute it to us
		domain.BackupArtifact{
			Identifier: "my-mysql-instance-copy", Kind: domain.BackupKindSnapshot,
			OriginIdentifier: "other-instance", SnapshotType: domain.SnapshotTypeManual,
			AllocatedStorage: 100,
		},
	)
}

// auroraClusterFixture populates the fake with a three-member Aurora
// cluster. The members share the cluster's security groups, subnet group,
// parameter group, and option group, so nested expansion produces heavy
// duplication the graph must collapse.
func auroraClusterFixture(f *fakeGateway) {
	f.addPrimary(domain.PrimaryResource{
		Identifier:    "prod-aurora-cluster",
		Kind:          domain.ResourceKindCluster,
		Engine:        "aurora-mysql",
		EngineVersion: "8.0.mysql_aurora.3.05.2",
		Status:        "available",
		References: domain.ReferencePayload{
			SecurityGroupIDs:          []string{"sg-c1", "sg-c2"},
			SubnetGroupName:           "aurora-subnets",
			ClusterParameterGroupName: "aurora-cluster-params",
			MemberIdentifiers:         []string{"prod-aurora-1", "prod-aurora-2", "prod-aurora-3"},
		},
		Members: []domain.MemberRef{
			{Identifier: "prod-aurora-1", IsWriter: true, PromotionTier: 0},
			{Identifier: "prod-aurora-2", IsWriter: false, PromotionTier: 1},
			{Identifier: "prod-aurora-3", IsWriter: false, PromotionTier: 2},
		},
	})
	for _, member := range []string{"prod-aurora-1", "prod-aurora-2", "prod-aurora-3"} {
		f.addPrimary(domain.PrimaryResource{
			Identifier:        member,
			Kind:              domain.ResourceKindInstance,
			Engine:            "aurora-mysql",
			EngineVersion:     "8.0.mysql_aurora.3.05.2",
			Status:            "available",
			InstanceClass:     "db.r6g.large",
			ClusterIdentifier: "prod-aurora-cluster",
			References: domain.ReferencePayload{
				SecurityGroupIDs:   []string{"sg-c1"},
				SubnetGroupName:    "aurora-subnets",
				ParameterGroupName: "aurora-instance-params",
				OptionGroupName:    "default:aurora-mysql-8-0",
			},
		})
	}
	f.addSecondary(domain.SecondaryResource{
		Identifier: "sg-c1", Category: domain.CategorySecurityGroup, Name: "aurora-app", VpcID: "vpc-9",
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "sg-c2", Category: domain.CategorySecurityGroup, Name: "aurora-ops", VpcID: "vpc-9",
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "aurora-subnets", Category: domain.CategorySubnetGroup, Name: "aurora-subnets", VpcID: "vpc-9",
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "aurora-cluster-params", Category: domain.CategoryClusterParameterGroup,
		Name: "aurora-cluster-params", Family: "aurora-mysql8.0",
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "aurora-instance-params", Category: domain.CategoryParameterGroup,
		Name: "aurora-instance-params", Family: "aurora-mysql8.0",
	})
	f.addSecondary(domain.SecondaryResource{
		Identifier: "default:aurora-mysql-8-0", Category: domain.CategoryOptionGroup,
		Name: "default:aurora-mysql-8-0",
	})
	f.snapshots = append(f.snapshots, domain.BackupArtifact{
		Identifier: "prod-aurora-cluster-weekly", Kind: domain.BackupKindClusterSnapshot,
		OriginIdentifier: "prod-aurora-cluster", SnapshotType: domain.SnapshotTypeManual,
	})
}
