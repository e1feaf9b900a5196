package discovery

import (
	"context"
	"sort"
	"sync"

	"rdscope/internal/domain"
	"rdscope/internal/gateway"
	"rdscope/internal/logging"
)

// BackupCorrelator discovers the backup artifacts owned by a primary
// resource or cluster member.
type BackupCorrelator struct {
	gw   gateway.Gateway
	pool *workPool
}

// NewBackupCorrelator builds a backup correlator sharing the run's work pool
func NewBackupCorrelator(gw gateway.Gateway, pool *workPool) *BackupCorrelator {
	return &BackupCorrelator{gw: gw, pool: pool}
}

// BackupResult is the settled outcome of the two snapshot sub-queries
type BackupResult struct {
	Backups     []domain.BackupArtifact
	Unavailable []domain.Unavailable
}

// Correlate runs the manual and automated snapshot listings as independent
// sub-queries. The provider-side type filter is an optimization only: after
// the listing fully drains, each artifact passes the authoritative ownership
// check (origin identifier equals the queried identifier) or is dropped.
// Artifacts whose origin cannot be determined are flagged ambiguous-origin
// rather than guessed. A failed sub-query degrades only its snapshot type.
func (b *BackupCorrelator) Correlate(ctx context.Context, ownerIdentifier string, kind domain.ResourceKind) BackupResult {
	countKey := domain.CountSnapshots
	if kind == domain.ResourceKindCluster {
		countKey = domain.CountClusterSnapshots
	}

	types := []domain.SnapshotType{domain.SnapshotTypeManual, domain.SnapshotTypeAutomated}
	listings := make([][]domain.BackupArtifact, len(types))
	failures := make([]error, len(types))

	var wg sync.WaitGroup
	for i, snapshotType := range types {
		wg.Add(1)
		go func(i int, snapshotType domain.SnapshotType) {
			defer wg.Done()
			failures[i] = b.pool.Do(ctx, func(ctx context.Context) error {
				artifacts, err := b.gw.ListBackups(ctx, ownerIdentifier, kind, snapshotType)
				if err != nil {
					return err
				}
				listings[i] = artifacts
				return nil
			})
		}(i, snapshotType)
	}
	wg.Wait()

	var result BackupResult
	for i, snapshotType := range types {
		if failures[i] != nil {
			reason := failureReason(failures[i])
			logging.LogLookup(countKey, string(snapshotType), false, reason)
			result.Unavailable = append(result.Unavailable, domain.Unavailable{
				Category:   countKey,
				Identifier: string(snapshotType),
				Reason:     reason,
			})
			continue
		}
		for _, artifact := range listings[i] {
			switch {
			case artifact.OriginIdentifier == "":
				result.Unavailable = append(result.Unavailable, domain.Unavailable{
					Category:   countKey,
					Identifier: artifact.Identifier,
					Reason:     "ambiguous-origin",
				})
			case artifact.OriginIdentifier == ownerIdentifier:
				result.Backups = append(result.Backups, artifact)
			}
			// Artifacts owned by someone else slipped past the provider-side
			// filter; they are simply not ours and are dropped
		}
	}

	sort.Slice(result.Backups, func(i, j int) bool {
		return result.Backups[i].Identifier < result.Backups[j].Identifier
	})

	return result
}
