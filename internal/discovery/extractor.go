package discovery

import (
	"rdscope/internal/domain"
)

// Reference is one (category, identifier) pair to resolve next
type Reference struct {
	Category   domain.Category
	Identifier string
}

// Extraction is the output of reference extraction: the references the
// correlator resolves, the member ids the expander consumes (clusters only),
// and Malformed markers for structurally absent fields.
type Extraction struct {
	References        []Reference
	MemberIdentifiers []string
	Missing           []domain.Unavailable
}

// ExtractReferences derives the secondary-resource references embedded in a
// primary descriptor. Pure function, no network access. A structurally
// incomplete descriptor yields the partial set it can extract plus a
// Malformed marker per missing field.
func ExtractReferences(primary *domain.PrimaryResource) Extraction {
	var out Extraction
	refs := primary.References

	if len(refs.SecurityGroupIDs) == 0 {
		out.Missing = append(out.Missing, domain.Unavailable{
			Category: domain.CountSecurityGroups,
			Reason:   string(domain.FailureMalformed),
		})
	}
	seen := make(map[string]bool)
	for _, id := range refs.SecurityGroupIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out.References = append(out.References, Reference{Category: domain.CategorySecurityGroup, Identifier: id})
	}

	if refs.SubnetGroupName != "" {
		out.References = append(out.References, Reference{Category: domain.CategorySubnetGroup, Identifier: refs.SubnetGroupName})
	} else {
		out.Missing = append(out.Missing, domain.Unavailable{
			Category: domain.CountSubnetGroups,
			Reason:   string(domain.FailureMalformed),
		})
	}

	switch primary.Kind {
	case domain.ResourceKindCluster:
		if refs.ClusterParameterGroupName != "" {
			out.References = append(out.References, Reference{Category: domain.CategoryClusterParameterGroup, Identifier: refs.ClusterParameterGroupName})
		} else {
			out.Missing = append(out.Missing, domain.Unavailable{
				Category: domain.CountClusterParameterGroups,
				Reason:   string(domain.FailureMalformed),
			})
		}
		out.MemberIdentifiers = append(out.MemberIdentifiers, refs.MemberIdentifiers...)

	default:
		if refs.ParameterGroupName != "" {
			out.References = append(out.References, Reference{Category: domain.CategoryParameterGroup, Identifier: refs.ParameterGroupName})
		} else {
			out.Missing = append(out.Missing, domain.Unavailable{
				Category: domain.CountParameterGroups,
				Reason:   string(domain.FailureMalformed),
			})
		}
		if refs.OptionGroupName != "" {
			out.References = append(out.References, Reference{Category: domain.CategoryOptionGroup, Identifier: refs.OptionGroupName})
		} else {
			out.Missing = append(out.Missing, domain.Unavailable{
				Category: domain.CountOptionGroups,
				Reason:   string(domain.FailureMalformed),
			})
		}
	}

	return out
}
