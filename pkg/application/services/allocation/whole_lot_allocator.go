package allocation

import (
	"context"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/services"
)

// WholeLotAllocator reserves complete lots for a demand and never splits one.
//
// Each call recomputes availability, selects lots with SelectWholeLots, claims
// them and moves the demand through the reservation state machine. Errors are
// returned only when reading the product, the demand's reserved total or the
// inventory fails, which always happens before any claim.
type WholeLotAllocator struct {
	engine *engine
}

// NewWholeLotAllocator creates a new whole-lot allocator
func NewWholeLotAllocator(deps Dependencies) (*WholeLotAllocator, error) {
	e, err := newEngine(deps, entities.StrategyWholeLot, services.SelectWholeLots)
	if err != nil {
		return nil, err
	}
	return &WholeLotAllocator{engine: e}, nil
}

// Verify interface compliance
var _ Allocator = (*WholeLotAllocator)(nil)

// Allocate reserves whole lots toward the demand's outstanding need
func (a *WholeLotAllocator) Allocate(ctx context.Context, demand entities.Demand) (*Outcome, error) {
	return a.engine.allocate(ctx, demand)
}
