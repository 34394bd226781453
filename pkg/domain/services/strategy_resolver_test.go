package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

type fakeCatalog struct {
	products    map[entities.ProductID]*entities.Product
	categories  map[string]*entities.Category
	locations   map[string]*entities.Location
	locationErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:   make(map[entities.ProductID]*entities.Product),
		categories: make(map[string]*entities.Category),
		locations:  make(map[string]*entities.Location),
	}
}

func (c *fakeCatalog) Product(_ context.Context, id entities.ProductID) (*entities.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("product %s: %w", id, repositories.ErrNotFound)
}

func (c *fakeCatalog) Category(_ context.Context, id string) (*entities.Category, error) {
	if cat, ok := c.categories[id]; ok {
		return cat, nil
	}
	return nil, fmt.Errorf("category %s: %w", id, repositories.ErrNotFound)
}

func (c *fakeCatalog) Location(_ context.Context, id string) (*entities.Location, error) {
	if c.locationErr != nil {
		return nil, c.locationErr
	}
	if loc, ok := c.locations[id]; ok {
		return loc, nil
	}
	return nil, fmt.Errorf("location %s: %w", id, repositories.ErrNotFound)
}

func (c *fakeCatalog) addLocation(id, parent string, strategy entities.RemovalStrategy) {
	c.locations[id] = &entities.Location{ID: id, ParentID: parent, RemovalStrategy: strategy}
}

func TestHierarchicalResolver(t *testing.T) {
	tests := []struct {
		name             string
		tracking         entities.TrackingMode
		categoryStrategy entities.RemovalStrategy
		rootStrategy     entities.RemovalStrategy
		stockStrategy    entities.RemovalStrategy
		expected         entities.RemovalStrategy
	}{
		{"whole_lot_category_wins", entities.TrackingLot, entities.StrategyWholeLot, entities.StrategyFIFO, entities.StrategyFIFO, entities.StrategyWholeLot},
		{"whole_lot_ancestor_location", entities.TrackingLot, entities.StrategyUnset, entities.StrategyWholeLot, entities.StrategyUnset, entities.StrategyWholeLot},
		{"whole_lot_ancestor_beats_nearer_fifo", entities.TrackingSerial, entities.StrategyUnset, entities.StrategyWholeLot, entities.StrategyFIFO, entities.StrategyWholeLot},
		{"whole_lot_location_beats_fifo_category", entities.TrackingLot, entities.StrategyFIFO, entities.StrategyUnset, entities.StrategyWholeLot, entities.StrategyWholeLot},
		{"untracked_never_whole_lot", entities.TrackingNone, entities.StrategyWholeLot, entities.StrategyWholeLot, entities.StrategyUnset, entities.StrategyFIFO},
		{"category_strategy_before_location", entities.TrackingLot, entities.StrategyFIFO, entities.StrategyUnset, entities.StrategyUnset, entities.StrategyFIFO},
		{"nothing_configured_uses_default", entities.TrackingLot, entities.StrategyUnset, entities.StrategyUnset, entities.StrategyUnset, entities.StrategyFIFO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog()
			catalog.products["SLAB"] = &entities.Product{ID: "SLAB", Tracking: tt.tracking, CategoryID: "stone"}
			catalog.categories["stone"] = &entities.Category{ID: "stone", RemovalStrategy: tt.categoryStrategy}
			catalog.addLocation("WH", "", tt.rootStrategy)
			catalog.addLocation("WH/Stock", "WH", tt.stockStrategy)
			catalog.addLocation("WH/Stock/Shelf", "WH/Stock", entities.StrategyUnset)

			resolver := NewHierarchicalResolver(catalog, entities.StrategyUnset)
			got, err := resolver.Resolve(context.Background(), "SLAB", "WH/Stock/Shelf")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestHierarchicalResolver_MissingCategoryAndLocation(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.products["SLAB"] = &entities.Product{ID: "SLAB", Tracking: entities.TrackingLot, CategoryID: "gone"}

	resolver := NewHierarchicalResolver(catalog, entities.StrategyWholeLot)
	got, err := resolver.Resolve(context.Background(), "SLAB", "nowhere")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != entities.StrategyWholeLot {
		t.Errorf("Expected configured default, got %q", got)
	}
}

func TestHierarchicalResolver_UnknownProduct(t *testing.T) {
	resolver := NewHierarchicalResolver(newFakeCatalog(), entities.StrategyFIFO)

	_, err := resolver.Resolve(context.Background(), "MISSING", "WH")
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestHierarchicalResolver_PropagatesCatalogFailure(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.products["SLAB"] = &entities.Product{ID: "SLAB", Tracking: entities.TrackingLot}
	catalog.locationErr = errors.New("connection reset")

	_, err := NewHierarchicalResolver(catalog, entities.StrategyFIFO).Resolve(context.Background(), "SLAB", "WH")
	if err == nil {
		t.Fatal("Expected an error from the catalog")
	}
}

func TestHierarchicalResolver_CyclicLocationTreeTerminates(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.products["SLAB"] = &entities.Product{ID: "SLAB", Tracking: entities.TrackingLot}
	catalog.addLocation("A", "B", entities.StrategyUnset)
	catalog.addLocation("B", "A", entities.StrategyUnset)

	got, err := NewHierarchicalResolver(catalog, entities.StrategyFIFO).Resolve(context.Background(), "SLAB", "A")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != entities.StrategyFIFO {
		t.Errorf("Expected default, got %q", got)
	}
}

func TestHierarchicalResolver_WholeLotDefault(t *testing.T) {
	tests := []struct {
		name     string
		tracking entities.TrackingMode
		expected entities.RemovalStrategy
	}{
		{"lot_tracked_takes_default", entities.TrackingLot, entities.StrategyWholeLot},
		{"serial_tracked_takes_default", entities.TrackingSerial, entities.StrategyWholeLot},
		{"untracked_falls_back_to_fifo", entities.TrackingNone, entities.StrategyFIFO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog()
			catalog.products["SAND"] = &entities.Product{ID: "SAND", Tracking: tt.tracking}
			catalog.addLocation("WH", "", entities.StrategyUnset)
			catalog.addLocation("WH/Stock", "WH", entities.StrategyUnset)

			got, err := NewHierarchicalResolver(catalog, entities.StrategyWholeLot).Resolve(context.Background(), "SAND", "WH/Stock")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
