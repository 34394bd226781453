package repositories

import (
	"context"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// DemandRepository provides access to demand data
type DemandRepository interface {
	Get(ctx context.Context, id string) (*entities.Demand, error)
	List(ctx context.Context) ([]*entities.Demand, error)
	UpdateState(ctx context.Context, id string, state entities.ReservationState) error
}
