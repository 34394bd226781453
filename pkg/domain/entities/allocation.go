package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AllocationRecord links a reserved quantity of a lot to the demand it serves
type AllocationRecord struct {
	ID         string     `json:"id"`
	DemandID   string     `json:"demand_id"`
	ProductID  ProductID  `json:"product_id"`
	Location   string     `json:"location"`
	LotID      LotID      `json:"lot_id"`
	Quantity   Quantity   `json:"quantity"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewAllocationRecord creates an AllocationRecord with a fresh identifier.
// The quantity must be strictly positive.
func NewAllocationRecord(
	demand Demand,
	lotID LotID,
	quantity Quantity,
	provenance Provenance,
	now time.Time,
) (*AllocationRecord, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("allocation quantity must be positive, got %s", quantity)
	}

	return &AllocationRecord{
		ID:         uuid.NewString(),
		DemandID:   demand.ID,
		ProductID:  demand.ProductID,
		Location:   demand.Location,
		LotID:      lotID,
		Quantity:   quantity,
		Provenance: provenance,
		CreatedAt:  now,
	}, nil
}
