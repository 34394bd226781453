package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

// AllocationRepository provides in-memory allocation record storage
type AllocationRepository struct {
	mu       sync.RWMutex
	records  []entities.AllocationRecord
	byDemand map[string][]int
	ids      map[string]bool
}

// NewAllocationRepository creates a new in-memory allocation repository
func NewAllocationRepository() *AllocationRepository {
	return &AllocationRepository{
		records:  []entities.AllocationRecord{},
		byDemand: make(map[string][]int),
		ids:      make(map[string]bool),
	}
}

// Verify interface compliance
var _ repositories.AllocationRepository = (*AllocationRepository)(nil)

// Create stores an allocation record
func (r *AllocationRepository) Create(_ context.Context, record *entities.AllocationRecord) error {
	if record == nil {
		return fmt.Errorf("allocation record cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ids[record.ID] {
		return fmt.Errorf("allocation record already exists: %s", record.ID)
	}
	r.ids[record.ID] = true
	r.byDemand[record.DemandID] = append(r.byDemand[record.DemandID], len(r.records))
	r.records = append(r.records, *record)
	return nil
}

// ListByDemand returns the demand's allocation records in creation order
func (r *AllocationRepository) ListByDemand(_ context.Context, demandID string) ([]*entities.AllocationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indexes := r.byDemand[demandID]
	records := make([]*entities.AllocationRecord, 0, len(indexes))
	for _, i := range indexes {
		record := r.records[i]
		records = append(records, &record)
	}
	return records, nil
}

// TotalReserved sums the quantities allocated to the demand
func (r *AllocationRepository) TotalReserved(_ context.Context, demandID string) (entities.Quantity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := decimal.Zero
	for _, i := range r.byDemand[demandID] {
		total = total.Add(r.records[i].Quantity)
	}
	return total, nil
}

// All returns every allocation record in creation order
func (r *AllocationRepository) All() []entities.AllocationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]entities.AllocationRecord(nil), r.records...)
}
