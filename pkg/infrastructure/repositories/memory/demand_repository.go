package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

// DemandRepository provides in-memory demand storage
type DemandRepository struct {
	mu      sync.RWMutex
	demands []entities.Demand
	index   map[string]int
}

// NewDemandRepository creates a new in-memory demand repository
func NewDemandRepository() *DemandRepository {
	return &DemandRepository{
		demands: []entities.Demand{},
		index:   make(map[string]int),
	}
}

// Verify interface compliance
var _ repositories.DemandRepository = (*DemandRepository)(nil)

// LoadDemands loads demands into the repository
func (r *DemandRepository) LoadDemands(demands []*entities.Demand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, demand := range demands {
		if _, exists := r.index[demand.ID]; exists {
			return fmt.Errorf("demand already exists: %s", demand.ID)
		}
		r.index[demand.ID] = len(r.demands)
		r.demands = append(r.demands, cloneDemand(*demand))
	}
	return nil
}

// Get returns a copy of the demand
func (r *DemandRepository) Get(_ context.Context, id string) (*entities.Demand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, exists := r.index[id]
	if !exists {
		return nil, fmt.Errorf("demand %s: %w", id, repositories.ErrNotFound)
	}
	demand := cloneDemand(r.demands[i])
	return &demand, nil
}

// List returns copies of all demands in load order
func (r *DemandRepository) List(_ context.Context) ([]*entities.Demand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	demands := make([]*entities.Demand, 0, len(r.demands))
	for i := range r.demands {
		demand := cloneDemand(r.demands[i])
		demands = append(demands, &demand)
	}
	return demands, nil
}

// UpdateState sets the reservation state of a demand
func (r *DemandRepository) UpdateState(_ context.Context, id string, state entities.ReservationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.index[id]
	if !exists {
		return fmt.Errorf("demand %s: %w", id, repositories.ErrNotFound)
	}
	r.demands[i].State = state
	return nil
}

func cloneDemand(d entities.Demand) entities.Demand {
	d.OriginIDs = append([]string(nil), d.OriginIDs...)
	d.DestinationIDs = append([]string(nil), d.DestinationIDs...)
	return d
}
