package domain

import "time"

// ReferencePayload holds the secondary-resource references embedded in a
// primary resource descriptor. Instances populate ParameterGroupName and
// OptionGroupName; clusters populate ClusterParameterGroupName and
// MemberIdentifiers.
type ReferencePayload struct {
	SecurityGroupIDs          []string `json:"security_group_ids,omitempty"`
	SubnetGroupName           string   `json:"subnet_group_name,omitempty"`
	ParameterGroupName        string   `json:"parameter_group_name,omitempty"`
	ClusterParameterGroupName string   `json:"cluster_parameter_group_name,omitempty"`
	OptionGroupName           string   `json:"option_group_name,omitempty"`
	MemberIdentifiers         []string `json:"member_identifiers,omitempty"`
}

// MemberRef is a cluster descriptor's view of one member instance
type MemberRef struct {
	Identifier    string `json:"identifier"`
	IsWriter      bool   `json:"is_writer"`
	PromotionTier int32  `json:"promotion_tier"`
}

// PrimaryResource is the queried DB instance or cluster. Immutable for the
// duration of one discovery run.
type PrimaryResource struct {
	Identifier        string           `json:"identifier"`
	Kind              ResourceKind     `json:"kind"`
	ARN               string           `json:"arn,omitempty"`
	Engine            string           `json:"engine"`
	EngineVersion     string           `json:"engine_version"`
	Status            string           `json:"status"`
	InstanceClass     string           `json:"instance_class,omitempty"`
	AllocatedStorage  int32            `json:"allocated_storage"`
	StorageType       string           `json:"storage_type,omitempty"`
	StorageEncrypted  bool             `json:"storage_encrypted"`
	MultiAZ           bool             `json:"multi_az"`
	AvailabilityZone  string           `json:"availability_zone,omitempty"`
	AvailabilityZones []string         `json:"availability_zones,omitempty"`
	VpcID             string           `json:"vpc_id,omitempty"`
	Endpoint          string           `json:"endpoint,omitempty"`
	ReaderEndpoint    string           `json:"reader_endpoint,omitempty"`
	Port              int32            `json:"port,omitempty"`
	ClusterIdentifier string           `json:"cluster_identifier,omitempty"`
	CreatedAt         time.Time        `json:"created_at,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
	References        ReferencePayload `json:"references"`
	// Members holds the cluster descriptor's member roles; populated for
	// kind cluster only
	Members []MemberRef `json:"members,omitempty"`
}

// SecondaryResource is a non-backup, non-membership resource referenced by
// the primary resource. Unique within a graph by (Category, Identifier).
type SecondaryResource struct {
	Identifier         string            `json:"identifier"`
	Category           Category          `json:"category"`
	Origin             Origin            `json:"origin"`
	Name               string            `json:"name,omitempty"`
	Description        string            `json:"description,omitempty"`
	VpcID              string            `json:"vpc_id,omitempty"`
	Family             string            `json:"family,omitempty"`
	EngineName         string            `json:"engine_name,omitempty"`
	Status             string            `json:"status,omitempty"`
	IngressRuleCount   int               `json:"ingress_rule_count,omitempty"`
	EgressRuleCount    int               `json:"egress_rule_count,omitempty"`
	ReferencedGroupIDs []string          `json:"referenced_group_ids,omitempty"`
	SubnetIDs          []string          `json:"subnet_ids,omitempty"`
	AvailabilityZones  []string          `json:"availability_zones,omitempty"`
	OptionNames        []string          `json:"option_names,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
	// Partial marks a record whose payload was incomplete and was degraded
	// rather than discarded
	Partial bool `json:"partial,omitempty"`
}

// BackupArtifact is a point-in-time snapshot of an instance or cluster.
// Attribution is strictly by OriginIdentifier equality with the owning
// resource, never by naming-pattern resemblance.
type BackupArtifact struct {
	Identifier       string            `json:"identifier"`
	Kind             BackupKind        `json:"kind"`
	OriginIdentifier string            `json:"origin_identifier"`
	SnapshotType     SnapshotType      `json:"snapshot_type"`
	Status           string            `json:"status,omitempty"`
	AllocatedStorage int32             `json:"allocated_storage"`
	Encrypted        bool              `json:"encrypted"`
	Engine           string            `json:"engine,omitempty"`
	EngineVersion    string            `json:"engine_version,omitempty"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// ClusterMember is an instance belonging to a cluster, expanded into its own
// nested sub-tree during cluster discovery. ClusterIdentifier is a lookup
// back-reference only.
type ClusterMember struct {
	Identifier        string              `json:"identifier"`
	ClusterIdentifier string              `json:"cluster_identifier"`
	IsWriter          bool                `json:"is_writer"`
	PromotionTier     int32               `json:"promotion_tier"`
	Instance          *PrimaryResource    `json:"instance,omitempty"`
	Secondaries       []SecondaryResource `json:"secondaries,omitempty"`
	Backups           []BackupArtifact    `json:"backups,omitempty"`
	Unavailable       []Unavailable       `json:"unavailable,omitempty"`
	// UnavailableReason is set when the member lookup itself failed; the
	// member still appears in the graph rather than being omitted
	UnavailableReason string `json:"unavailable_reason,omitempty"`
}

// Resolved reports whether the member's own descriptor was fetched
func (m ClusterMember) Resolved() bool {
	return m.Instance != nil
}

// Unavailable records a sub-lookup that could not be completed and why
type Unavailable struct {
	Category   string `json:"category"`
	Identifier string `json:"identifier,omitempty"`
	Reason     string `json:"reason"`
}

// ResourceGraph is the deduplicated, aggregated discovery result for one run.
// Secondaries are unique by (Category, Identifier), Backups by Identifier,
// and both are canonically sorted so two runs against an unchanged backing
// resource produce identical output.
type ResourceGraph struct {
	Primary      PrimaryResource     `json:"primary"`
	Secondaries  []SecondaryResource `json:"secondaries"`
	Backups      []BackupArtifact    `json:"backups"`
	Members      []ClusterMember     `json:"members,omitempty"`
	Counts       map[string]int      `json:"counts"`
	Total        int                 `json:"total"`
	Completeness Completeness        `json:"completeness"`
	Unavailable  []Unavailable       `json:"unavailable,omitempty"`
}

// Complete reports whether every sub-lookup in the run succeeded
func (g *ResourceGraph) Complete() bool {
	return g.Completeness == CompletenessComplete
}
