package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

// StrategyResolver decides which removal strategy governs a product at a location
type StrategyResolver interface {
	Resolve(ctx context.Context, productID entities.ProductID, location string) (entities.RemovalStrategy, error)
}

// maxLocationDepth bounds the parent walk so a cyclic location tree cannot loop forever
const maxLocationDepth = 64

// HierarchicalResolver resolves strategies from the product category and the location tree.
//
// Only lot or serial tracked products may use the whole-lot strategy. A
// whole-lot category wins; otherwise the first location from the demand
// location up to the root carrying whole-lot wins. Failing both, the category
// strategy, then the nearest location strategy, then the default applies.
// An untracked product never resolves to whole-lot, whatever the default.
type HierarchicalResolver struct {
	catalog  repositories.CatalogRepository
	fallback entities.RemovalStrategy
}

// NewHierarchicalResolver creates a resolver backed by the catalog
func NewHierarchicalResolver(catalog repositories.CatalogRepository, fallback entities.RemovalStrategy) *HierarchicalResolver {
	if fallback == entities.StrategyUnset {
		fallback = entities.StrategyFIFO
	}
	return &HierarchicalResolver{catalog: catalog, fallback: fallback}
}

// Verify interface compliance
var _ StrategyResolver = (*HierarchicalResolver)(nil)

// Resolve returns the removal strategy for the product at the location
func (r *HierarchicalResolver) Resolve(
	ctx context.Context,
	productID entities.ProductID,
	location string,
) (entities.RemovalStrategy, error) {
	product, err := r.catalog.Product(ctx, productID)
	if err != nil {
		return entities.StrategyUnset, fmt.Errorf("resolve strategy for %s: %w", productID, err)
	}

	var categoryStrategy entities.RemovalStrategy
	if product.CategoryID != "" {
		category, err := r.catalog.Category(ctx, product.CategoryID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
		case err != nil:
			return entities.StrategyUnset, fmt.Errorf("resolve strategy for %s: %w", productID, err)
		default:
			categoryStrategy = category.RemovalStrategy
		}
	}

	if categoryStrategy == entities.StrategyWholeLot && product.IsTracked() {
		return entities.StrategyWholeLot, nil
	}

	nearestStrategy := entities.StrategyUnset
	current := location
	for depth := 0; current != "" && depth < maxLocationDepth; depth++ {
		loc, err := r.catalog.Location(ctx, current)
		if errors.Is(err, repositories.ErrNotFound) {
			break
		}
		if err != nil {
			return entities.StrategyUnset, fmt.Errorf("resolve strategy at %s: %w", current, err)
		}
		if loc.RemovalStrategy == entities.StrategyWholeLot && product.IsTracked() {
			return entities.StrategyWholeLot, nil
		}
		if nearestStrategy == entities.StrategyUnset && loc.RemovalStrategy != entities.StrategyWholeLot {
			nearestStrategy = loc.RemovalStrategy
		}
		current = loc.ParentID
	}

	switch {
	case categoryStrategy != entities.StrategyUnset && categoryStrategy != entities.StrategyWholeLot:
		return categoryStrategy, nil
	case nearestStrategy != entities.StrategyUnset:
		return nearestStrategy, nil
	case r.fallback == entities.StrategyWholeLot && !product.IsTracked():
		return entities.StrategyFIFO, nil
	default:
		return r.fallback, nil
	}
}
