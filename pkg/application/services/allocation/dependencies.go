package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
	"github.com/vsinha/wholelot/pkg/infrastructure/events"
	"github.com/vsinha/wholelot/pkg/infrastructure/metrics"
)

const tracerName = "github.com/vsinha/wholelot/allocation"

// Dependencies holds the collaborators shared by the allocators and the assigner.
// Events, Metrics, Logger, Clock and DefaultRounding are optional.
type Dependencies struct {
	Inventory   repositories.InventoryRepository
	Allocations repositories.AllocationRepository
	Demands     repositories.DemandRepository
	Catalog     repositories.CatalogRepository

	Events  events.EventStore
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time

	// DefaultRounding applies to products whose unit carries no precision
	DefaultRounding entities.Rounding
}

func (d Dependencies) validate() error {
	if d.Inventory == nil {
		return fmt.Errorf("inventory repository is required")
	}
	if d.Allocations == nil {
		return fmt.Errorf("allocation repository is required")
	}
	if d.Demands == nil {
		return fmt.Errorf("demand repository is required")
	}
	if d.Catalog == nil {
		return fmt.Errorf("catalog repository is required")
	}
	return nil
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if !d.DefaultRounding.Precision.IsPositive() {
		d.DefaultRounding = entities.DefaultRounding
	}
	return d
}

func (d Dependencies) tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (d Dependencies) publish(ctx context.Context, streamID, eventType string, data interface{}) {
	if d.Events == nil {
		return
	}
	if err := d.Events.AppendEvent(ctx, streamID, events.NewEvent(eventType, streamID, data)); err != nil {
		d.Logger.Warn("failed to publish event",
			slog.String("event_type", eventType),
			slog.String("demand_id", streamID),
			slog.Any("err", err))
	}
}

// roundingFor returns the tolerance used for a product's quantities
func (d Dependencies) roundingFor(product *entities.Product) entities.Rounding {
	if product != nil && product.UnitOfMeasure.Rounding.Precision.IsPositive() {
		return product.UnitOfMeasure.Rounding
	}
	return d.DefaultRounding
}
