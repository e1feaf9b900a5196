package discovery

import (
	"sort"

	"rdscope/internal/domain"
)

// BuildGraph merges the settled sub-lookup results into the final resource
// graph: secondaries deduplicated by (category, identifier), backups by
// identifier, per-category counts, the grand total, and the completeness
// flag with its structured unavailable list.
func BuildGraph(primary *domain.PrimaryResource, correlation CorrelationResult, backups BackupResult, members []domain.ClusterMember, missing []domain.Unavailable) *domain.ResourceGraph {
	graph := &domain.ResourceGraph{
		Primary: *primary,
		Members: members,
		Counts:  make(map[string]int),
	}

	// Merge top-level and nested member sets. A resource reachable through
	// two paths (e.g. a member sharing the cluster's security group) yields
	// exactly one entry; a direct origin wins over an indirect one.
	secondaries := make(map[secondaryKey]domain.SecondaryResource)
	mergeSecondaries(secondaries, correlation.Secondaries)
	backupSet := make(map[string]domain.BackupArtifact)
	mergeBackups(backupSet, backups.Backups)
	for _, member := range members {
		mergeSecondaries(secondaries, member.Secondaries)
		mergeBackups(backupSet, member.Backups)
	}

	for _, secondary := range secondaries {
		graph.Secondaries = append(graph.Secondaries, secondary)
	}
	sort.Slice(graph.Secondaries, func(i, j int) bool {
		a, b := graph.Secondaries[i], graph.Secondaries[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Identifier < b.Identifier
	})

	for _, artifact := range backupSet {
		graph.Backups = append(graph.Backups, artifact)
	}
	sort.Slice(graph.Backups, func(i, j int) bool {
		return graph.Backups[i].Identifier < graph.Backups[j].Identifier
	})

	for _, secondary := range graph.Secondaries {
		graph.Counts[secondary.Category.CountKey()]++
	}
	for _, artifact := range graph.Backups {
		graph.Counts[artifact.Kind.CountKey()]++
	}
	resolvedMembers := 0
	for _, member := range members {
		if member.Resolved() {
			resolvedMembers++
		}
	}
	if primary.Kind == domain.ResourceKindCluster {
		graph.Counts[domain.CountClusterMembers] = resolvedMembers
	}

	// The primary itself is reported but not counted as a discovered
	// category, hence the +1
	total := 1
	for _, count := range graph.Counts {
		total += count
	}
	graph.Total = total

	graph.Unavailable = append(graph.Unavailable, missing...)
	graph.Unavailable = append(graph.Unavailable, correlation.Unavailable...)
	graph.Unavailable = append(graph.Unavailable, backups.Unavailable...)
	for _, member := range members {
		if !member.Resolved() {
			graph.Unavailable = append(graph.Unavailable, domain.Unavailable{
				Category:   domain.CountClusterMembers,
				Identifier: member.Identifier,
				Reason:     member.UnavailableReason,
			})
			continue
		}
		for _, unavailable := range member.Unavailable {
			if unavailable.Identifier == "" {
				unavailable.Identifier = member.Identifier
			} else {
				unavailable.Identifier = member.Identifier + "/" + unavailable.Identifier
			}
			graph.Unavailable = append(graph.Unavailable, unavailable)
		}
	}
	sort.Slice(graph.Unavailable, func(i, j int) bool {
		a, b := graph.Unavailable[i], graph.Unavailable[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Identifier < b.Identifier
	})

	if len(graph.Unavailable) == 0 {
		graph.Completeness = domain.CompletenessComplete
	} else {
		graph.Completeness = domain.CompletenessPartial
	}

	return graph
}

type secondaryKey struct {
	category   domain.Category
	identifier string
}

func mergeSecondaries(into map[secondaryKey]domain.SecondaryResource, add []domain.SecondaryResource) {
	for _, secondary := range add {
		key := secondaryKey{secondary.Category, secondary.Identifier}
		existing, ok := into[key]
		if !ok || (existing.Origin == domain.OriginIndirect && secondary.Origin == domain.OriginDirect) {
			into[key] = secondary
		}
	}
}

func mergeBackups(into map[string]domain.BackupArtifact, add []domain.BackupArtifact) {
	for _, artifact := range add {
		if _, ok := into[artifact.Identifier]; !ok {
			into[artifact.Identifier] = artifact
		}
	}
}
