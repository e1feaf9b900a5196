package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"

	"rdscope/internal/domain"
	"rdscope/internal/gateway"
	"rdscope/internal/logging"
)

// Correlator resolves extracted references into full secondary-resource
// descriptors across provider surfaces.
type Correlator struct {
	gw   gateway.Gateway
	pool *workPool
}

// NewCorrelator builds a correlator sharing the run's work pool
func NewCorrelator(gw gateway.Gateway, pool *workPool) *Correlator {
	return &Correlator{gw: gw, pool: pool}
}

// CorrelationResult is the settled outcome of resolving a reference set.
// Failed references appear in Unavailable rather than being omitted.
type CorrelationResult struct {
	Secondaries []domain.SecondaryResource
	Unavailable []domain.Unavailable
}

type resolveSlot struct {
	secondary   *domain.SecondaryResource
	unavailable *domain.Unavailable
}

// Resolve fans the references out over the work pool and collects the
// results. Security groups get exactly one level of indirect expansion:
// group ids referenced by a resolved group's rules are resolved once more,
// tagged indirect, and never expanded further. Output ordering is canonical
// (category, then identifier) regardless of completion order.
func (c *Correlator) Resolve(ctx context.Context, refs []Reference) CorrelationResult {
	slots := c.resolveWave(ctx, refs, domain.OriginDirect)

	// One-hop indirect expansion for security groups. Anything already
	// requested or resolved is skipped so a reference reachable through two
	// paths yields exactly one entry.
	known := make(map[string]bool)
	for _, ref := range refs {
		if ref.Category == domain.CategorySecurityGroup {
			known[ref.Identifier] = true
		}
	}
	var indirect []Reference
	for _, slot := range slots {
		if slot.secondary == nil || slot.secondary.Category != domain.CategorySecurityGroup {
			continue
		}
		for _, id := range slot.secondary.ReferencedGroupIDs {
			if known[id] {
				continue
			}
			known[id] = true
			indirect = append(indirect, Reference{Category: domain.CategorySecurityGroup, Identifier: id})
		}
	}
	if len(indirect) > 0 {
		slots = append(slots, c.resolveWave(ctx, indirect, domain.OriginIndirect)...)
	}

	var result CorrelationResult
	for _, slot := range slots {
		if slot.secondary != nil {
			result.Secondaries = append(result.Secondaries, *slot.secondary)
		}
		if slot.unavailable != nil {
			result.Unavailable = append(result.Unavailable, *slot.unavailable)
		}
	}

	sort.Slice(result.Secondaries, func(i, j int) bool {
		a, b := result.Secondaries[i], result.Secondaries[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Identifier < b.Identifier
	})
	sort.Slice(result.Unavailable, func(i, j int) bool {
		a, b := result.Unavailable[i], result.Unavailable[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Identifier < b.Identifier
	})

	return result
}

func (c *Correlator) resolveWave(ctx context.Context, refs []Reference, origin domain.Origin) []resolveSlot {
	slots := make([]resolveSlot, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref Reference) {
			defer wg.Done()
			slots[i] = c.resolveOne(ctx, ref, origin)
		}(i, ref)
	}
	wg.Wait()

	return slots
}

// resolveOne resolves a single reference. Each resolution is independent:
// failure here never blocks sibling references.
func (c *Correlator) resolveOne(ctx context.Context, ref Reference, origin domain.Origin) resolveSlot {
	var secondary *domain.SecondaryResource

	err := c.pool.Do(ctx, func(ctx context.Context) error {
		resolved, err := c.gw.DescribeSecondary(ctx, ref.Category, ref.Identifier)
		if err != nil {
			return err
		}
		secondary = resolved
		return nil
	})

	if err != nil {
		reason := failureReason(err)
		logging.LogLookup(ref.Category.CountKey(), ref.Identifier, false, reason)
		return resolveSlot{unavailable: &domain.Unavailable{
			Category:   ref.Category.CountKey(),
			Identifier: ref.Identifier,
			Reason:     reason,
		}}
	}

	secondary.Origin = origin
	logging.LogLookup(ref.Category.CountKey(), ref.Identifier, true, "")
	return resolveSlot{secondary: secondary}
}

// failureReason renders an error as an unavailable-list reason. Context
// expiry means the run deadline fired before the lookup settled.
func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	return string(domain.KindOf(err))
}
