package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/services"
	"github.com/vsinha/wholelot/pkg/infrastructure/events"
)

// Allocator reserves inventory for a single demand
type Allocator interface {
	Allocate(ctx context.Context, demand entities.Demand) (*Outcome, error)
}

// Outcome is the result of one allocation call for a demand.
// Quantities are expressed in the product unit.
type Outcome struct {
	DemandID      string                      `json:"demand_id"`
	Strategy      entities.RemovalStrategy    `json:"strategy"`
	Skipped       bool                        `json:"skipped,omitempty"`
	Need          entities.Quantity           `json:"need"`
	Selection     []entities.Lot              `json:"selection"`
	Unmet         entities.Quantity           `json:"unmet"`
	NewlyReserved entities.Quantity           `json:"newly_reserved"`
	Shortfall     entities.Quantity           `json:"shortfall"`
	Records       []entities.AllocationRecord `json:"records"`
	Claims        []LotClaim                  `json:"claims"`
	PreviousState entities.ReservationState   `json:"previous_state"`
	State         entities.ReservationState   `json:"state"`
	Transition    entities.Transition         `json:"transition"`
}

// selectFunc chooses which lots, and how much of each, to claim for a need
type selectFunc func(lots []entities.Lot, need entities.Quantity, rounding entities.Rounding) entities.SelectionResult

// engine runs the fetch, aggregate, select, apply and transition pipeline
// shared by every allocator; only the selection step differs.
type engine struct {
	deps       Dependencies
	applier    *ReservationApplier
	strategy   entities.RemovalStrategy
	selectLots selectFunc
}

func newEngine(deps Dependencies, strategy entities.RemovalStrategy, selectLots selectFunc) (*engine, error) {
	applier, err := NewReservationApplier(deps)
	if err != nil {
		return nil, err
	}
	return &engine{
		deps:       deps.withDefaults(),
		applier:    applier,
		strategy:   strategy,
		selectLots: selectLots,
	}, nil
}

func (e *engine) allocate(ctx context.Context, demand entities.Demand) (*Outcome, error) {
	start := time.Now()
	ctx, span := e.deps.tracer().Start(ctx, "Allocate", trace.WithAttributes(
		attribute.String("demand_id", demand.ID),
		attribute.String("product", string(demand.ProductID)),
		attribute.String("location", demand.Location),
		attribute.String("strategy", string(e.strategy)),
	))
	defer span.End()

	outcome := &Outcome{
		DemandID:      demand.ID,
		Strategy:      e.strategy,
		Need:          decimal.Zero,
		Selection:     []entities.Lot{},
		Unmet:         decimal.Zero,
		NewlyReserved: decimal.Zero,
		Shortfall:     decimal.Zero,
		Records:       []entities.AllocationRecord{},
		Claims:        []LotClaim{},
		PreviousState: demand.State,
		State:         demand.State,
		Transition:    entities.NoProgress,
	}

	if !demand.IsAssignable() {
		outcome.Skipped = true
		e.deps.Logger.Debug("demand not assignable",
			slog.String("demand_id", demand.ID),
			slog.String("state", demand.State.String()))
		e.finish(outcome, start)
		return outcome, nil
	}

	fail := func(err error) (*Outcome, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	product, err := e.deps.Catalog.Product(ctx, demand.ProductID)
	if err != nil {
		return fail(fmt.Errorf("failed to load product %s: %w", demand.ProductID, err))
	}
	rounding := e.deps.roundingFor(product)

	totalDemand, err := demand.QuantityIn(product.UnitOfMeasure)
	if err != nil {
		return fail(fmt.Errorf("failed to convert demand %s: %w", demand.ID, err))
	}

	alreadyReserved, err := e.deps.Allocations.TotalReserved(ctx, demand.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to read reserved quantity for %s: %w", demand.ID, err))
	}

	need := totalDemand.Sub(alreadyReserved)
	if !rounding.IsPositive(need) {
		e.finish(outcome, start)
		return outcome, nil
	}
	outcome.Need = need

	records, err := e.deps.Inventory.FetchRecords(ctx, demand.ProductID, demand.Location)
	if err != nil {
		return fail(fmt.Errorf("failed to fetch inventory for %s at %s: %w", demand.ProductID, demand.Location, err))
	}

	lots := services.AggregateLots(records, rounding)
	selection := e.selectLots(lots, need, rounding)
	outcome.Selection = selection.Lots
	outcome.Unmet = selection.Unmet

	applied := e.applier.Apply(ctx, demand, selection, rounding)
	outcome.NewlyReserved = applied.Reserved
	outcome.Records = applied.Records
	outcome.Claims = applied.Claims

	outcome.State, outcome.Transition = services.NextState(
		demand.State,
		applied.Reserved,
		alreadyReserved.Add(applied.Reserved),
		totalDemand,
		rounding,
	)

	if outcome.State != demand.State {
		if err := e.deps.Demands.UpdateState(ctx, demand.ID, outcome.State); err != nil {
			e.deps.Logger.Error("failed to persist demand state",
				slog.String("demand_id", demand.ID),
				slog.String("state", outcome.State.String()),
				slog.Any("err", err))
		}
		e.deps.publish(ctx, demand.ID, events.DemandStateChangedEvent, events.DemandStateChanged{
			DemandID:   demand.ID,
			From:       demand.State,
			To:         outcome.State,
			Transition: outcome.Transition,
		})
	}

	shortfall := need.Sub(applied.Reserved)
	if rounding.IsPositive(shortfall) {
		outcome.Shortfall = shortfall
		e.deps.Logger.Warn("demand pending manual lot selection",
			slog.String("demand_id", demand.ID),
			slog.String("product", string(demand.ProductID)),
			slog.String("location", demand.Location),
			slog.String("need", need.String()),
			slog.String("reserved", applied.Reserved.String()),
			slog.String("shortfall", shortfall.String()))
		e.deps.publish(ctx, demand.ID, events.ShortageIdentifiedEvent, events.ShortageIdentified{
			DemandID:  demand.ID,
			ProductID: demand.ProductID,
			Location:  demand.Location,
			Need:      need,
			Reserved:  applied.Reserved,
			Shortfall: shortfall,
		})
	}

	span.SetAttributes(
		attribute.String("reserved", applied.Reserved.String()),
		attribute.String("transition", outcome.Transition.String()),
	)
	e.deps.Metrics.AddReserved(string(e.strategy), applied.Reserved.InexactFloat64())
	e.finish(outcome, start)
	return outcome, nil
}

func (e *engine) finish(outcome *Outcome, start time.Time) {
	e.deps.Metrics.IncrementOutcome(string(e.strategy), outcome.Transition.String())
	e.deps.Metrics.ObserveAllocateLatency(time.Since(start))
}
