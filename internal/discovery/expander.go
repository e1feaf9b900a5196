package discovery

import (
	"context"
	"sort"
	"sync"

	"rdscope/internal/domain"
	"rdscope/internal/gateway"
	"rdscope/internal/logging"
)

// Expander enumerates a cluster's member instances and re-runs cross-service
// and backup correlation against each member's own descriptor.
type Expander struct {
	gw      gateway.Gateway
	members *Correlator
	backups *BackupCorrelator
	pool    *workPool
}

// NewExpander builds an expander sharing the run's work pool
func NewExpander(gw gateway.Gateway, correlator *Correlator, backups *BackupCorrelator, pool *workPool) *Expander {
	return &Expander{gw: gw, members: correlator, backups: backups, pool: pool}
}

// Expand produces one ClusterMember per extracted member id, in canonical
// identifier order. A member lookup failure never aborts expansion of the
// others: the failing member appears with an unavailable reason instead of
// being omitted, so the member count always matches the cluster descriptor.
func (e *Expander) Expand(ctx context.Context, cluster *domain.PrimaryResource, memberIdentifiers []string) []domain.ClusterMember {
	roles := make(map[string]domain.MemberRef, len(cluster.Members))
	for _, ref := range cluster.Members {
		roles[ref.Identifier] = ref
	}

	members := make([]domain.ClusterMember, len(memberIdentifiers))

	var wg sync.WaitGroup
	for i, memberID := range memberIdentifiers {
		wg.Add(1)
		go func(i int, memberID string) {
			defer wg.Done()
			members[i] = e.expandMember(ctx, cluster.Identifier, memberID, roles[memberID])
		}(i, memberID)
	}
	wg.Wait()

	sort.Slice(members, func(i, j int) bool {
		return members[i].Identifier < members[j].Identifier
	})

	return members
}

func (e *Expander) expandMember(ctx context.Context, clusterID, memberID string, role domain.MemberRef) domain.ClusterMember {
	member := domain.ClusterMember{
		Identifier:        memberID,
		ClusterIdentifier: clusterID,
		IsWriter:          role.IsWriter,
		PromotionTier:     role.PromotionTier,
	}

	// The pool permit covers only the member describe call; nested
	// correlator lookups acquire their own permits per call
	var instance *domain.PrimaryResource
	err := e.pool.Do(ctx, func(ctx context.Context) error {
		resolved, err := e.gw.DescribePrimary(ctx, memberID, domain.ResourceKindInstance)
		if err != nil {
			return err
		}
		instance = resolved
		return nil
	})
	if err != nil {
		reason := failureReason(err)
		logging.LogLookup(domain.CountClusterMembers, memberID, false, reason)
		member.UnavailableReason = reason
		return member
	}

	member.Instance = instance
	extraction := ExtractReferences(instance)

	var correlation CorrelationResult
	var backups BackupResult
	var inner sync.WaitGroup
	inner.Add(2)
	go func() {
		defer inner.Done()
		correlation = e.members.Resolve(ctx, extraction.References)
	}()
	go func() {
		defer inner.Done()
		backups = e.backups.Correlate(ctx, memberID, domain.ResourceKindInstance)
	}()
	inner.Wait()

	member.Secondaries = correlation.Secondaries
	member.Backups = backups.Backups
	member.Unavailable = append(member.Unavailable, extraction.Missing...)
	member.Unavailable = append(member.Unavailable, correlation.Unavailable...)
	member.Unavailable = append(member.Unavailable, backups.Unavailable...)

	logging.LogLookup(domain.CountClusterMembers, memberID, true, "")
	return member
}
