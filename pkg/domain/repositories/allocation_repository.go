package repositories

import (
	"context"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// AllocationRepository persists allocation records
type AllocationRepository interface {
	Create(ctx context.Context, record *entities.AllocationRecord) error
	ListByDemand(ctx context.Context, demandID string) ([]*entities.AllocationRecord, error)
	TotalReserved(ctx context.Context, demandID string) (entities.Quantity, error)
}
