package outputter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"rdscope/internal/domain"
)

// Format names the supported table styles
const (
	FormatPretty  = "pretty"
	FormatLight   = "light"
	FormatRounded = "rounded"
)

func styleFor(format string) table.Style {
	switch format {
	case FormatLight:
		return table.StyleLight
	case FormatRounded:
		return table.StyleRounded
	default:
		return table.StyleDefault
	}
}

// RenderPrimary renders the primary resource header block
func RenderPrimary(graph *domain.ResourceGraph, region string) string {
	var b strings.Builder
	primary := graph.Primary

	b.WriteString(fmt.Sprintf("%s\n", strings.Repeat("=", 72)))
	b.WriteString("RDS Resource Discovery Results\n")
	b.WriteString(fmt.Sprintf("%s\n", strings.Repeat("=", 72)))

	if primary.Kind == domain.ResourceKindCluster {
		b.WriteString(fmt.Sprintf("DB Cluster ID: %s\n", primary.Identifier))
	} else {
		b.WriteString(fmt.Sprintf("DB Instance ID: %s\n", primary.Identifier))
		if primary.InstanceClass != "" {
			b.WriteString(fmt.Sprintf("Instance Class: %s\n", primary.InstanceClass))
		}
	}
	b.WriteString(fmt.Sprintf("Engine: %s %s\n", primary.Engine, primary.EngineVersion))
	b.WriteString(fmt.Sprintf("Status: %s\n", primary.Status))
	if primary.StorageType != "" {
		b.WriteString(fmt.Sprintf("Storage: %d GB (%s)\n", primary.AllocatedStorage, primary.StorageType))
	} else {
		b.WriteString(fmt.Sprintf("Storage: %d GB\n", primary.AllocatedStorage))
	}
	b.WriteString(fmt.Sprintf("Encrypted: %t\n", primary.StorageEncrypted))
	if primary.Kind == domain.ResourceKindCluster {
		b.WriteString(fmt.Sprintf("Availability Zones: %s\n", strings.Join(primary.AvailabilityZones, ", ")))
		if primary.ReaderEndpoint != "" {
			b.WriteString(fmt.Sprintf("Reader Endpoint: %s\n", primary.ReaderEndpoint))
		}
	} else {
		b.WriteString(fmt.Sprintf("Multi-AZ: %t\n", primary.MultiAZ))
		if primary.AvailabilityZone != "" {
			b.WriteString(fmt.Sprintf("Availability Zone: %s\n", primary.AvailabilityZone))
		}
	}
	if primary.VpcID != "" {
		b.WriteString(fmt.Sprintf("VPC ID: %s\n", primary.VpcID))
	}
	if primary.Endpoint != "" {
		b.WriteString(fmt.Sprintf("Endpoint: %s:%d\n", primary.Endpoint, primary.Port))
	}
	if primary.ClusterIdentifier != "" {
		b.WriteString(fmt.Sprintf("DB Cluster: %s\n", primary.ClusterIdentifier))
	}
	if !primary.CreatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Creation Time: %s\n", primary.CreatedAt.Format(time.RFC3339)))
	}
	if len(primary.Tags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", formatTags(primary.Tags)))
	}
	if region != "" {
		b.WriteString(fmt.Sprintf("Region: %s\n", region))
	}
	b.WriteString(fmt.Sprintf("Total Resources Found: %d\n", graph.Total))

	return b.String()
}

// RenderSummary renders the per-category count table
func RenderSummary(graph *domain.ResourceGraph, format string) string {
	t := table.NewWriter()
	t.SetStyle(styleFor(format))
	t.AppendHeader(table.Row{"Resource Category", "Count"})

	keys := make([]string, 0, len(graph.Counts))
	for key := range graph.Counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		t.AppendRow(table.Row{key, graph.Counts[key]})
	}
	t.AppendFooter(table.Row{"total (incl. primary)", graph.Total})

	return t.Render()
}

// RenderResources renders the flat one-row-per-resource table
func RenderResources(graph *domain.ResourceGraph, format string) string {
	t := table.NewWriter()
	t.SetStyle(styleFor(format))
	t.AppendHeader(table.Row{"Resource Type", "Resource ID", "Details"})

	primaryType := "DB Instance"
	if graph.Primary.Kind == domain.ResourceKindCluster {
		primaryType = "DB Cluster"
	}
	t.AppendRow(table.Row{primaryType, graph.Primary.Identifier,
		fmt.Sprintf("%s %s, %s", graph.Primary.Engine, graph.Primary.EngineVersion, graph.Primary.Status)})

	for _, secondary := range graph.Secondaries {
		t.AppendRow(table.Row{categoryLabel(secondary.Category), secondary.Identifier, secondaryDetails(secondary)})
	}
	for _, artifact := range graph.Backups {
		t.AppendRow(table.Row{backupLabel(artifact.Kind), artifact.Identifier, backupDetails(artifact)})
	}
	for _, member := range graph.Members {
		t.AppendRow(table.Row{"DB Cluster Member", member.Identifier, memberDetails(member)})
	}

	return t.Render()
}

// RenderDetailed renders one table per resource category
func RenderDetailed(graph *domain.ResourceGraph, format string) string {
	var b strings.Builder

	byCategory := make(map[domain.Category][]domain.SecondaryResource)
	for _, secondary := range graph.Secondaries {
		byCategory[secondary.Category] = append(byCategory[secondary.Category], secondary)
	}

	categories := []domain.Category{
		domain.CategorySecurityGroup,
		domain.CategorySubnetGroup,
		domain.CategoryParameterGroup,
		domain.CategoryClusterParameterGroup,
		domain.CategoryOptionGroup,
	}
	for _, category := range categories {
		group := byCategory[category]
		if len(group) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n## %ss\n", categoryLabel(category)))
		t := table.NewWriter()
		t.SetStyle(styleFor(format))
		t.AppendHeader(table.Row{"ID", "Name", "VPC", "Origin", "Details"})
		for _, secondary := range group {
			t.AppendRow(table.Row{secondary.Identifier, secondary.Name, secondary.VpcID,
				string(secondary.Origin), secondaryDetails(secondary)})
		}
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	if len(graph.Backups) > 0 {
		b.WriteString("\n## Snapshots\n")
		t := table.NewWriter()
		t.SetStyle(styleFor(format))
		t.AppendHeader(table.Row{"ID", "Type", "Owner", "Created", "Size (GB)", "Encrypted"})
		for _, artifact := range graph.Backups {
			created := ""
			if !artifact.CreatedAt.IsZero() {
				created = artifact.CreatedAt.Format(time.RFC3339)
			}
			t.AppendRow(table.Row{artifact.Identifier, string(artifact.SnapshotType),
				artifact.OriginIdentifier, created, artifact.AllocatedStorage, artifact.Encrypted})
		}
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	if len(graph.Members) > 0 {
		b.WriteString("\n## Cluster Members\n")
		t := table.NewWriter()
		t.SetStyle(styleFor(format))
		t.AppendHeader(table.Row{"ID", "Writer", "Tier", "Status", "Resources"})
		for _, member := range graph.Members {
			status := "available"
			if !member.Resolved() {
				status = "unavailable: " + member.UnavailableReason
			} else if member.Instance != nil {
				status = member.Instance.Status
			}
			t.AppendRow(table.Row{member.Identifier, member.IsWriter, member.PromotionTier,
				status, len(member.Secondaries) + len(member.Backups)})
		}
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	return b.String()
}

// RenderUnavailable renders the partial-run warning block
func RenderUnavailable(graph *domain.ResourceGraph) string {
	if graph.Complete() {
		return ""
	}
	var b strings.Builder
	b.WriteString("WARNING: discovery completed with partial results\n")
	for _, unavailable := range graph.Unavailable {
		if unavailable.Identifier != "" {
			b.WriteString(fmt.Sprintf("  - %s %s: %s\n", unavailable.Category, unavailable.Identifier, unavailable.Reason))
		} else {
			b.WriteString(fmt.Sprintf("  - %s: %s\n", unavailable.Category, unavailable.Reason))
		}
	}
	return b.String()
}

func categoryLabel(category domain.Category) string {
	switch category {
	case domain.CategorySecurityGroup:
		return "VPC Security Group"
	case domain.CategorySubnetGroup:
		return "DB Subnet Group"
	case domain.CategoryParameterGroup:
		return "DB Parameter Group"
	case domain.CategoryClusterParameterGroup:
		return "DB Cluster Parameter Group"
	case domain.CategoryOptionGroup:
		return "Option Group"
	default:
		return string(category)
	}
}

func backupLabel(kind domain.BackupKind) string {
	if kind == domain.BackupKindClusterSnapshot {
		return "DB Cluster Snapshot"
	}
	return "DB Snapshot"
}

func secondaryDetails(secondary domain.SecondaryResource) string {
	switch secondary.Category {
	case domain.CategorySecurityGroup:
		return fmt.Sprintf("%s (%d in / %d out rules)", secondary.Description,
			secondary.IngressRuleCount, secondary.EgressRuleCount)
	case domain.CategorySubnetGroup:
		return fmt.Sprintf("%s, %d subnets", secondary.Description, len(secondary.SubnetIDs))
	case domain.CategoryParameterGroup, domain.CategoryClusterParameterGroup:
		return fmt.Sprintf("%s (%s)", secondary.Description, secondary.Family)
	case domain.CategoryOptionGroup:
		return fmt.Sprintf("%s, %d options", secondary.Description, len(secondary.OptionNames))
	default:
		return secondary.Description
	}
}

func backupDetails(artifact domain.BackupArtifact) string {
	created := "unknown"
	if !artifact.CreatedAt.IsZero() {
		created = artifact.CreatedAt.Format("2006-01-02")
	}
	return fmt.Sprintf("%s, %d GB, created %s", artifact.SnapshotType, artifact.AllocatedStorage, created)
}

func memberDetails(member domain.ClusterMember) string {
	if !member.Resolved() {
		return "unavailable: " + member.UnavailableReason
	}
	role := "reader"
	if member.IsWriter {
		role = "writer"
	}
	return fmt.Sprintf("%s, %s, %d nested resources", role, member.Instance.Status,
		len(member.Secondaries)+len(member.Backups))
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s:%s", key, tags[key]))
	}
	return strings.Join(pairs, ", ")
}
