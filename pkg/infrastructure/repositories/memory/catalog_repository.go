package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

// CatalogRepository provides in-memory product, category and location storage
type CatalogRepository struct {
	mu         sync.RWMutex
	products   map[entities.ProductID]entities.Product
	categories map[string]entities.Category
	locations  map[string]entities.Location
}

// NewCatalogRepository creates a new in-memory catalog repository
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		products:   make(map[entities.ProductID]entities.Product),
		categories: make(map[string]entities.Category),
		locations:  make(map[string]entities.Location),
	}
}

// Verify interface compliance
var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// LoadProducts loads products into the repository
func (r *CatalogRepository) LoadProducts(products []*entities.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, product := range products {
		if _, exists := r.products[product.ID]; exists {
			return fmt.Errorf("product already exists: %s", product.ID)
		}
		r.products[product.ID] = *product
	}
	return nil
}

// LoadCategories loads categories into the repository
func (r *CatalogRepository) LoadCategories(categories []*entities.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, category := range categories {
		r.categories[category.ID] = *category
	}
	return nil
}

// LoadLocations loads locations into the repository
func (r *CatalogRepository) LoadLocations(locations []*entities.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, location := range locations {
		r.locations[location.ID] = *location
	}
	return nil
}

// Product returns product master data
func (r *CatalogRepository) Product(_ context.Context, id entities.ProductID) (*entities.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, fmt.Errorf("product %s: %w", id, repositories.ErrNotFound)
	}
	return &product, nil
}

// Category returns a product category
func (r *CatalogRepository) Category(_ context.Context, id string) (*entities.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, exists := r.categories[id]
	if !exists {
		return nil, fmt.Errorf("category %s: %w", id, repositories.ErrNotFound)
	}
	return &category, nil
}

// Location returns a stock location
func (r *CatalogRepository) Location(_ context.Context, id string) (*entities.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	location, exists := r.locations[id]
	if !exists {
		return nil, fmt.Errorf("location %s: %w", id, repositories.ErrNotFound)
	}
	return &location, nil
}
