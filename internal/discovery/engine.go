package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rdscope/internal/domain"
	"rdscope/internal/gateway"
	"rdscope/internal/logging"
)

// runState names the phases of one discovery run
type runState string

const (
	stateValidate             runState = "Validate"
	stateFetchPrimary         runState = "FetchPrimary"
	stateExtractReferences    runState = "ExtractReferences"
	stateCorrelateCrossService runState = "CorrelateCrossService"
	stateCorrelateBackups     runState = "CorrelateBackups"
	stateExpandMembers        runState = "ExpandMembers"
	stateAggregate            runState = "Aggregate"
	stateDone                 runState = "Done"
)

// Options bounds one discovery run
type Options struct {
	// Timeout bounds total wall-clock time; sub-lookups still outstanding
	// when it fires are marked unavailable and the run completes partial
	Timeout time.Duration
	// Concurrency caps simultaneous in-flight provider calls
	Concurrency int
}

// Engine coordinates one read-only discovery run against a provider
// gateway. Engines hold no state across runs.
type Engine struct {
	gw   gateway.Gateway
	opts Options
}

// New builds an engine for the given gateway
func New(gw gateway.Gateway, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	return &Engine{gw: gw, opts: opts}
}

// Discover resolves the primary resource and assembles its full resource
// graph. Only a NotFound on the primary lookup is fatal; every other
// failure degrades the affected lookup and the run still completes, with
// the graph flagged partial.
func (e *Engine) Discover(ctx context.Context, identifier string, kind domain.ResourceKind) (*domain.ResourceGraph, error) {
	start := time.Now()
	metrics := logging.GetMetrics()

	transition(stateValidate, identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier must not be empty")
	}
	if kind != domain.ResourceKindInstance && kind != domain.ResourceKindCluster {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	transition(stateFetchPrimary, identifier)
	primary, err := e.gw.DescribePrimary(ctx, identifier, kind)
	if err != nil {
		// Without a primary descriptor there is nothing to correlate
		// against, so any primary failure ends the run; NotFound is the
		// distinct fatal outcome the CLI maps to its own exit code
		metrics.RecordOperation("discover", time.Since(start), false, 0, err)
		return nil, fmt.Errorf("failed to resolve %s %q: %w", kind, identifier, err)
	}

	transition(stateExtractReferences, identifier)
	extraction := ExtractReferences(primary)

	pool := newWorkPool(e.opts.Concurrency)
	correlator := NewCorrelator(e.gw, pool)
	backupCorrelator := NewBackupCorrelator(e.gw, pool)

	// Cross-service correlation, backup correlation, and member expansion
	// have no data dependency on one another once the reference list is
	// known; each writes into its own slot and aggregation reads after all
	// slots settle
	var correlation CorrelationResult
	var backups BackupResult
	var members []domain.ClusterMember

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		transition(stateCorrelateCrossService, identifier)
		correlation = correlator.Resolve(ctx, extraction.References)
	}()
	go func() {
		defer wg.Done()
		transition(stateCorrelateBackups, identifier)
		backups = backupCorrelator.Correlate(ctx, identifier, kind)
	}()

	if kind == domain.ResourceKindCluster {
		expander := NewExpander(e.gw, correlator, backupCorrelator, pool)
		wg.Add(1)
		go func() {
			defer wg.Done()
			transition(stateExpandMembers, identifier)
			members = expander.Expand(ctx, primary, extraction.MemberIdentifiers)
		}()
	}
	wg.Wait()

	transition(stateAggregate, identifier)
	graph := BuildGraph(primary, correlation, backups, members, extraction.Missing)

	transition(stateDone, identifier)
	metrics.RecordOperation("discover", time.Since(start), true, graph.Total, nil)
	logging.LogInfo("Discovery run finished", map[string]interface{}{
		"resource":     identifier,
		"kind":         string(kind),
		"total":        graph.Total,
		"completeness": string(graph.Completeness),
		"duration_ms":  time.Since(start).Milliseconds(),
	})

	return graph, nil
}

func transition(state runState, identifier string) {
	logging.LogDebug("Run state", map[string]interface{}{
		"state":    string(state),
		"resource": identifier,
	})
}
