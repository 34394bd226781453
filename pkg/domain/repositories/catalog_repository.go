package repositories

import (
	"context"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// CatalogRepository provides access to products, categories and locations
type CatalogRepository interface {
	Product(ctx context.Context, id entities.ProductID) (*entities.Product, error)
	Category(ctx context.Context, id string) (*entities.Category, error)
	Location(ctx context.Context, id string) (*entities.Location, error)
}
