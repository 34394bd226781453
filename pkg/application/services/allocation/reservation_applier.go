package allocation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/infrastructure/events"
)

// Claim results reported to metrics
const (
	claimFull       = "full"
	claimShort      = "short"
	claimEmpty      = "empty"
	claimError      = "error"
	claimUnrecorded = "unrecorded"
)

// LotClaim describes one claim issued against a selected lot
type LotClaim struct {
	LotID     entities.LotID    `json:"lot_id"`
	Requested entities.Quantity `json:"requested"`
	Reserved  entities.Quantity `json:"reserved"`
	Err       error             `json:"-"`
}

// Short reports whether the claim reserved less than it asked for
func (c LotClaim) Short() bool {
	return c.Reserved.LessThan(c.Requested)
}

// ApplyResult is what a ReservationApplier actually reserved.
// Reserved always equals the sum of the Records quantities.
type ApplyResult struct {
	Reserved entities.Quantity
	Records  []entities.AllocationRecord
	Claims   []LotClaim
}

// ReservationApplier claims the selected lots against live inventory and
// records one allocation line per successful claim.
//
// A claim may return less than requested when a concurrent claim won part of
// the lot; only what was actually reserved and recorded is counted. Claim and
// persistence failures, including panics in the stores, are logged and never
// abort the remaining claims.
type ReservationApplier struct {
	deps Dependencies
}

// NewReservationApplier creates a new reservation applier
func NewReservationApplier(deps Dependencies) (*ReservationApplier, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &ReservationApplier{deps: deps.withDefaults()}, nil
}

// Apply claims every lot of the selection in order. Each lot is claimed for
// its Available quantity. Claims that reserve nothing at the given rounding
// produce no record.
func (a *ReservationApplier) Apply(
	ctx context.Context,
	demand entities.Demand,
	selection entities.SelectionResult,
	rounding entities.Rounding,
) ApplyResult {
	result := ApplyResult{
		Reserved: decimal.Zero,
		Records:  make([]entities.AllocationRecord, 0, len(selection.Lots)),
		Claims:   make([]LotClaim, 0, len(selection.Lots)),
	}

	for _, lot := range selection.Lots {
		claim := a.claim(ctx, demand, lot, rounding)
		if !rounding.IsPositive(claim.Reserved) {
			result.Claims = append(result.Claims, claim)
			continue
		}

		record, err := a.record(ctx, demand, lot.ID, claim.Reserved)
		if err != nil {
			claim.Err = err
			result.Claims = append(result.Claims, claim)
			a.unrecorded(ctx, demand, claim)
			continue
		}
		result.Claims = append(result.Claims, claim)
		result.Records = append(result.Records, *record)
		result.Reserved = result.Reserved.Add(record.Quantity)
		a.deps.publish(ctx, demand.ID, events.LotReservedEvent, events.LotReserved{Record: *record})
	}

	return result
}

func (a *ReservationApplier) claim(
	ctx context.Context,
	demand entities.Demand,
	lot entities.Lot,
	rounding entities.Rounding,
) LotClaim {
	ctx, span := a.deps.tracer().Start(ctx, "ReservationApplier.Claim", trace.WithAttributes(
		attribute.String("demand_id", demand.ID),
		attribute.String("lot", string(lot.ID)),
		attribute.String("requested", lot.Available.String()),
	))
	defer span.End()

	claim := LotClaim{LotID: lot.ID, Requested: lot.Available, Reserved: decimal.Zero}

	var reserved entities.Quantity
	err := recovered("claim", func() (err error) {
		reserved, err = a.deps.Inventory.Claim(ctx, demand.ProductID, demand.Location, lot.ID, lot.Available)
		return err
	})
	if err != nil {
		claim.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		a.deps.Metrics.IncrementClaim(claimError)
		a.deps.Logger.Warn("lot claim failed",
			slog.String("demand_id", demand.ID),
			slog.String("product", string(demand.ProductID)),
			slog.String("location", demand.Location),
			slog.String("lot", string(lot.ID)),
			slog.String("requested", lot.Available.String()),
			slog.Any("err", err))
		return claim
	}

	// a store must never hand back more than asked or a negative amount
	if reserved.GreaterThan(lot.Available) {
		reserved = lot.Available
	}
	if reserved.IsNegative() {
		reserved = decimal.Zero
	}
	claim.Reserved = reserved
	span.SetAttributes(attribute.String("reserved", reserved.String()))

	short := rounding.Compare(reserved, lot.Available) < 0
	switch {
	case !rounding.IsPositive(reserved):
		a.deps.Metrics.IncrementClaim(claimEmpty)
		a.deps.Logger.Info("lot already taken",
			slog.String("demand_id", demand.ID),
			slog.String("lot", string(lot.ID)),
			slog.String("requested", lot.Available.String()),
			slog.String("reserved", reserved.String()))
	case short:
		a.deps.Metrics.IncrementClaim(claimShort)
		a.deps.Logger.Info("lot claim short",
			slog.String("demand_id", demand.ID),
			slog.String("lot", string(lot.ID)),
			slog.String("requested", lot.Available.String()),
			slog.String("reserved", reserved.String()))
	default:
		a.deps.Metrics.IncrementClaim(claimFull)
	}

	if short {
		a.deps.publish(ctx, demand.ID, events.LotClaimShortEvent, events.LotClaimShort{
			DemandID:  demand.ID,
			ProductID: demand.ProductID,
			Location:  demand.Location,
			LotID:     lot.ID,
			Requested: lot.Available,
			Reserved:  reserved,
		})
	}
	return claim
}

func (a *ReservationApplier) record(
	ctx context.Context,
	demand entities.Demand,
	lotID entities.LotID,
	quantity entities.Quantity,
) (*entities.AllocationRecord, error) {
	var provenance entities.Provenance
	err := recovered("lot provenance", func() (err error) {
		provenance, _, err = a.deps.Inventory.LotProvenance(ctx, demand.ProductID, demand.Location, lotID)
		return err
	})
	if err != nil {
		a.deps.Logger.Warn("lot provenance unavailable",
			slog.String("demand_id", demand.ID),
			slog.String("lot", string(lotID)),
			slog.Any("err", err))
		provenance = entities.Provenance{}
	}

	record, err := entities.NewAllocationRecord(demand, lotID, quantity, provenance, a.deps.Clock())
	if err != nil {
		return nil, fmt.Errorf("failed to build allocation record: %w", err)
	}
	if err := recovered("persist allocation record", func() error {
		return a.deps.Allocations.Create(ctx, record)
	}); err != nil {
		return nil, fmt.Errorf("failed to persist allocation record: %w", err)
	}
	return record, nil
}

// unrecorded reports stock that was claimed but has no allocation record.
// The quantity is not counted as reserved for the demand.
func (a *ReservationApplier) unrecorded(ctx context.Context, demand entities.Demand, claim LotClaim) {
	a.deps.Metrics.IncrementClaim(claimUnrecorded)
	a.deps.Logger.Error("claimed stock left without allocation record",
		slog.String("demand_id", demand.ID),
		slog.String("product", string(demand.ProductID)),
		slog.String("location", demand.Location),
		slog.String("lot", string(claim.LotID)),
		slog.String("reserved", claim.Reserved.String()),
		slog.Any("err", claim.Err))
	a.deps.publish(ctx, demand.ID, events.LotUnrecordedEvent, events.LotUnrecorded{
		DemandID:  demand.ID,
		ProductID: demand.ProductID,
		Location:  demand.Location,
		LotID:     claim.LotID,
		Reserved:  claim.Reserved,
		Error:     claim.Err.Error(),
	})
}

// recovered runs fn and turns a panic into an error
func recovered(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn()
}
