package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/services"
	"github.com/vsinha/wholelot/pkg/infrastructure/events"
)

// DefaultConcurrency bounds the number of demands allocated at once
const DefaultConcurrency = 4

// Route tells how a demand was handled in a batch
type Route string

const (
	RouteWholeLot Route = "whole_lot"
	RouteStandard Route = "standard"
	RouteDeferred Route = "deferred"
)

// AssignOptions tunes a batch assignment
type AssignOptions struct {
	// SkipWholeLot sends every demand through the standard allocator
	SkipWholeLot bool
}

// Assignment is the result for one demand of a batch. Outcome is nil for
// deferred demands and when Err is set.
type Assignment struct {
	DemandID string   `json:"demand_id"`
	Route    Route    `json:"route"`
	Outcome  *Outcome `json:"outcome,omitempty"`
	Err      error    `json:"-"`
}

// BatchResult holds the assignments of a batch in input order
type BatchResult struct {
	Assignments []Assignment `json:"assignments"`
}

// Errors joins the per-demand allocation errors of the batch
func (b *BatchResult) Errors() error {
	var errs []error
	for _, a := range b.Assignments {
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("demand %s: %w", a.DemandID, a.Err))
		}
	}
	return errors.Join(errs...)
}

// Outcomes returns the outcomes of every allocated demand in input order
func (b *BatchResult) Outcomes() []*Outcome {
	outcomes := make([]*Outcome, 0, len(b.Assignments))
	for _, a := range b.Assignments {
		if a.Outcome != nil {
			outcomes = append(outcomes, a.Outcome)
		}
	}
	return outcomes
}

// Assigner routes batches of demands to the whole-lot or the standard
// allocator.
//
// Demands whose strategy resolves to whole-lot and that are fed by origin
// demands are deferred: they wait until an origin completes and are then
// reserved by the standard allocator, since the lots were already moved whole.
type Assigner struct {
	deps        Dependencies
	resolver    services.StrategyResolver
	wholeLot    Allocator
	standard    Allocator
	concurrency int
}

// NewAssigner creates an assigner with both allocators built from deps
func NewAssigner(deps Dependencies, resolver services.StrategyResolver, concurrency int) (*Assigner, error) {
	wholeLot, err := NewWholeLotAllocator(deps)
	if err != nil {
		return nil, err
	}
	standard, err := NewStandardAllocator(deps)
	if err != nil {
		return nil, err
	}
	return NewAssignerWithAllocators(deps, resolver, wholeLot, standard, concurrency)
}

// NewAssignerWithAllocators creates an assigner around the given allocators
func NewAssignerWithAllocators(
	deps Dependencies,
	resolver services.StrategyResolver,
	wholeLot Allocator,
	standard Allocator,
	concurrency int,
) (*Assigner, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, fmt.Errorf("strategy resolver is required")
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Assigner{
		deps:        deps.withDefaults(),
		resolver:    resolver,
		wholeLot:    wholeLot,
		standard:    standard,
		concurrency: concurrency,
	}, nil
}

// AssignDemands allocates the given demands.
//
// Standard demands are processed before whole-lot ones; within each group
// demands run concurrently up to the configured bound. An error is returned
// only when a demand cannot be loaded or its strategy cannot be resolved, in
// which case nothing has been reserved. Allocation failures of individual
// demands are reported on their Assignment.
func (a *Assigner) AssignDemands(ctx context.Context, demandIDs []string, opts AssignOptions) (*BatchResult, error) {
	result := &BatchResult{Assignments: make([]Assignment, len(demandIDs))}
	demands := make([]entities.Demand, len(demandIDs))

	var standardIdx, wholeLotIdx []int
	for i, id := range demandIDs {
		demand, err := a.deps.Demands.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load demand %s: %w", id, err)
		}
		route, err := a.route(ctx, *demand, opts)
		if err != nil {
			return nil, err
		}

		demands[i] = *demand
		result.Assignments[i] = Assignment{DemandID: id, Route: route}
		switch route {
		case RouteStandard:
			standardIdx = append(standardIdx, i)
		case RouteWholeLot:
			wholeLotIdx = append(wholeLotIdx, i)
		}
	}

	for i := range result.Assignments {
		if result.Assignments[i].Route == RouteDeferred {
			a.deferDemand(ctx, demands[i])
		}
	}

	a.run(ctx, a.standard, standardIdx, demands, result)
	a.run(ctx, a.wholeLot, wholeLotIdx, demands, result)

	return result, nil
}

func (a *Assigner) route(ctx context.Context, demand entities.Demand, opts AssignOptions) (Route, error) {
	if opts.SkipWholeLot || !demand.IsAssignable() {
		return RouteStandard, nil
	}
	strategy, err := a.resolver.Resolve(ctx, demand.ProductID, demand.Location)
	if err != nil {
		return "", fmt.Errorf("failed to resolve strategy for demand %s: %w", demand.ID, err)
	}
	if strategy != entities.StrategyWholeLot {
		return RouteStandard, nil
	}
	if demand.HasOrigins() {
		return RouteDeferred, nil
	}
	return RouteWholeLot, nil
}

// run allocates the indexed demands on a bounded pool. Each goroutine writes
// only its own slot of result.
func (a *Assigner) run(ctx context.Context, allocator Allocator, indexes []int, demands []entities.Demand, result *BatchResult) {
	if len(indexes) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(a.concurrency)
	for _, i := range indexes {
		slot := i
		p.Go(func() {
			outcome, err := allocator.Allocate(ctx, demands[slot])
			result.Assignments[slot].Outcome = outcome
			result.Assignments[slot].Err = err
			if err != nil {
				a.deps.Logger.Error("demand allocation failed",
					slog.String("demand_id", demands[slot].ID),
					slog.Any("err", err))
			}
		})
	}
	p.Wait()
}

func (a *Assigner) deferDemand(ctx context.Context, demand entities.Demand) {
	if demand.State == entities.Unfulfilled {
		if err := a.deps.Demands.UpdateState(ctx, demand.ID, entities.Waiting); err != nil {
			a.deps.Logger.Error("failed to mark demand waiting",
				slog.String("demand_id", demand.ID),
				slog.Any("err", err))
		}
	}
	a.deps.Logger.Info("deferring whole-lot reservation until origins complete",
		slog.String("demand_id", demand.ID),
		slog.String("product", string(demand.ProductID)),
		slog.Int("origins", len(demand.OriginIDs)))
	a.deps.Metrics.IncrementDeferred()
	a.deps.publish(ctx, demand.ID, events.DemandDeferredEvent, events.DemandDeferred{
		DemandID:  demand.ID,
		OriginIDs: append([]string(nil), demand.OriginIDs...),
	})
}

// PropagateCompleted reserves the deferred destinations of a completed demand.
// Destinations that are assignable and resolve to whole-lot are allocated by
// the standard allocator. Nothing happens unless the demand is Done.
func (a *Assigner) PropagateCompleted(ctx context.Context, demandID string) (*BatchResult, error) {
	demand, err := a.deps.Demands.Get(ctx, demandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load demand %s: %w", demandID, err)
	}
	if demand.State != entities.Done || len(demand.DestinationIDs) == 0 {
		return &BatchResult{Assignments: []Assignment{}}, nil
	}

	deferred := make([]string, 0, len(demand.DestinationIDs))
	for _, id := range demand.DestinationIDs {
		next, err := a.deps.Demands.Get(ctx, id)
		if err != nil {
			a.deps.Logger.Warn("skipping unknown destination demand",
				slog.String("demand_id", demandID),
				slog.String("destination", id),
				slog.Any("err", err))
			continue
		}
		if !next.IsAssignable() {
			continue
		}
		strategy, err := a.resolver.Resolve(ctx, next.ProductID, next.Location)
		if err != nil {
			a.deps.Logger.Warn("skipping destination with unresolved strategy",
				slog.String("demand_id", demandID),
				slog.String("destination", id),
				slog.Any("err", err))
			continue
		}
		if strategy == entities.StrategyWholeLot {
			deferred = append(deferred, id)
		}
	}

	if len(deferred) == 0 {
		return &BatchResult{Assignments: []Assignment{}}, nil
	}

	a.deps.Logger.Info("propagating completed demand to deferred destinations",
		slog.String("demand_id", demandID),
		slog.Any("destinations", deferred))

	return a.AssignDemands(ctx, deferred, AssignOptions{SkipWholeLot: true})
}

// MarkDone completes a demand and propagates to its deferred destinations
func (a *Assigner) MarkDone(ctx context.Context, demandID string) (*BatchResult, error) {
	demand, err := a.deps.Demands.Get(ctx, demandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load demand %s: %w", demandID, err)
	}
	if demand.State != entities.Done {
		if err := a.deps.Demands.UpdateState(ctx, demandID, entities.Done); err != nil {
			return nil, fmt.Errorf("failed to complete demand %s: %w", demandID, err)
		}
		a.deps.publish(ctx, demandID, events.DemandStateChangedEvent, events.DemandStateChanged{
			DemandID:   demandID,
			From:       demand.State,
			To:         entities.Done,
			Transition: entities.NoProgress,
		})
	}
	return a.PropagateCompleted(ctx, demandID)
}
