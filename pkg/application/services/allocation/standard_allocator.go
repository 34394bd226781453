package allocation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// StandardAllocator reserves stock in FIFO order and may split lots
type StandardAllocator struct {
	engine *engine
}

// NewStandardAllocator creates a new FIFO allocator
func NewStandardAllocator(deps Dependencies) (*StandardAllocator, error) {
	e, err := newEngine(deps, entities.StrategyFIFO, selectFIFO)
	if err != nil {
		return nil, err
	}
	return &StandardAllocator{engine: e}, nil
}

// Verify interface compliance
var _ Allocator = (*StandardAllocator)(nil)

// Allocate reserves up to the demand's outstanding need, oldest stock first
func (a *StandardAllocator) Allocate(ctx context.Context, demand entities.Demand) (*Outcome, error) {
	return a.engine.allocate(ctx, demand)
}

// selectFIFO takes from each lot in order until the need is covered. The last
// lot taken may be only partly requested.
func selectFIFO(lots []entities.Lot, need entities.Quantity, rounding entities.Rounding) entities.SelectionResult {
	selected := make([]entities.Lot, 0, len(lots))
	remaining := need

	for _, lot := range lots {
		if !rounding.IsPositive(remaining) {
			break
		}
		take := decimal.Min(lot.Available, remaining)
		selected = append(selected, entities.Lot{ID: lot.ID, Available: take, InDate: lot.InDate})
		remaining = remaining.Sub(take)
	}

	if !rounding.IsPositive(remaining) {
		remaining = decimal.Zero
	}
	return entities.SelectionResult{Lots: selected, Unmet: remaining}
}
