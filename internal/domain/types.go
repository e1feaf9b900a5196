package domain

// ResourceKind represents the kind of primary resource being discovered
type ResourceKind string

const (
	ResourceKindInstance ResourceKind = "instance"
	ResourceKindCluster  ResourceKind = "cluster"
)

// Category represents a secondary resource category
type Category string

const (
	CategorySecurityGroup         Category = "SECURITY_GROUP"
	CategorySubnetGroup           Category = "SUBNET_GROUP"
	CategoryParameterGroup        Category = "PARAMETER_GROUP"
	CategoryClusterParameterGroup Category = "CLUSTER_PARAMETER_GROUP"
	CategoryOptionGroup           Category = "OPTION_GROUP"
)

// BackupKind distinguishes instance snapshots from cluster snapshots
type BackupKind string

const (
	BackupKindSnapshot        BackupKind = "SNAPSHOT"
	BackupKindClusterSnapshot BackupKind = "CLUSTER_SNAPSHOT"
)

// SnapshotType mirrors the provider-side manual/automated distinction
type SnapshotType string

const (
	SnapshotTypeManual    SnapshotType = "manual"
	SnapshotTypeAutomated SnapshotType = "automated"
)

// Origin records how a secondary resource was reached
type Origin string

const (
	// OriginDirect means the resource was referenced by the primary descriptor
	OriginDirect Origin = "direct"
	// OriginIndirect means the resource was reached through another secondary
	// resource, e.g. a security group referenced by another group's rules
	OriginIndirect Origin = "indirect"
)

// Completeness indicates whether every sub-lookup in a run succeeded
type Completeness string

const (
	CompletenessComplete Completeness = "complete"
	CompletenessPartial  Completeness = "partial"
)

// Count map keys used in ResourceGraph summaries
const (
	CountSnapshots              = "snapshots"
	CountClusterSnapshots       = "clusterSnapshots"
	CountSecurityGroups         = "securityGroups"
	CountSubnetGroups           = "subnetGroups"
	CountParameterGroups        = "parameterGroups"
	CountClusterParameterGroups = "clusterParameterGroups"
	CountOptionGroups           = "optionGroups"
	CountClusterMembers         = "clusterMembers"
)

// CountKey returns the summary count key for a secondary category
func (c Category) CountKey() string {
	switch c {
	case CategorySecurityGroup:
		return CountSecurityGroups
	case CategorySubnetGroup:
		return CountSubnetGroups
	case CategoryParameterGroup:
		return CountParameterGroups
	case CategoryClusterParameterGroup:
		return CountClusterParameterGroups
	case CategoryOptionGroup:
		return CountOptionGroups
	default:
		return string(c)
	}
}

// CountKey returns the summary count key for a backup kind
func (k BackupKind) CountKey() string {
	if k == BackupKindClusterSnapshot {
		return CountClusterSnapshots
	}
	return CountSnapshots
}

// LogLevel represents log levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)
