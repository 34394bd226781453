package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vsinha/wholelot/pkg/application/services/allocation"
	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/infrastructure/logging"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()

	// Create repositories
	inventory := memory.NewInventoryRepository()
	catalog := memory.NewCatalogRepository()
	demands := memory.NewDemandRepository()

	// Set up a granite yard with three slab lots
	if err := setupGraniteYard(inventory, catalog); err != nil {
		fmt.Printf("❌ Setup failed: %v\n", err)
		return
	}

	demand, err := entities.NewDemand("SO-1001", "GRANITE_SLAB", "YARD/Stock", entities.Qty(15))
	if err != nil {
		fmt.Printf("❌ Invalid demand: %v\n", err)
		return
	}
	if err := demands.LoadDemands([]*entities.Demand{demand}); err != nil {
		fmt.Printf("❌ Failed to load demand: %v\n", err)
		return
	}

	// Create the whole-lot allocator
	allocator, err := allocation.NewWholeLotAllocator(allocation.Dependencies{
		Inventory:   inventory,
		Allocations: memory.NewAllocationRepository(),
		Demands:     demands,
		Catalog:     catalog,
		Logger:      logging.Discard(),
	})
	if err != nil {
		fmt.Printf("❌ Failed to create allocator: %v\n", err)
		return
	}

	fmt.Println("🪨 Reserving whole slabs for order SO-1001...")
	fmt.Printf("Demand: %s m2 of %s at %s\n", demand.Quantity, demand.ProductID, demand.Location)
	fmt.Println()

	outcome, err := allocator.Allocate(ctx, *demand)
	if err != nil {
		fmt.Printf("❌ Allocation failed: %v\n", err)
		return
	}

	// Display results
	fmt.Println("📊 Allocation Results:")
	fmt.Printf("  Need: %s\n", outcome.Need)
	fmt.Printf("  Reserved: %s\n", outcome.NewlyReserved)
	fmt.Printf("  State: %s (%s)\n", outcome.State, outcome.Transition)
	fmt.Println()

	if len(outcome.Records) > 0 {
		fmt.Println("📦 Reserved Lots:")
		for _, record := range outcome.Records {
			fmt.Printf("  %s: %s m2 (package %s)\n",
				record.LotID, record.Quantity, record.Provenance.PackageID)
		}
		fmt.Println()
	}

	if outcome.Shortfall.IsPositive() {
		fmt.Printf("⚠️  %s m2 still need a manual lot choice; no remaining lot fits without cutting a slab\n",
			outcome.Shortfall)
	}
}

func setupGraniteYard(inventory *memory.InventoryRepository, catalog *memory.CatalogRepository) error {
	unit, err := entities.NewUnitOfMeasure("m2", entities.MustQuantity("0.01"), entities.Qty(1))
	if err != nil {
		return err
	}
	product, err := entities.NewProduct("GRANITE_SLAB", "Polished granite slab", entities.TrackingLot, "stone", unit)
	if err != nil {
		return err
	}
	if err := catalog.LoadProducts([]*entities.Product{product}); err != nil {
		return err
	}

	lots := []struct {
		lot     entities.LotID
		qty     int64
		arrived time.Time
	}{
		{"BLOCK-7", 8, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"BLOCK-9", 6, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"BLOCK-12", 10, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
	}

	records := make([]*entities.InventoryRecord, 0, len(lots))
	for i, l := range lots {
		arrived := l.arrived
		record, err := entities.NewInventoryRecord(
			fmt.Sprintf("Q%03d", i+1),
			product.ID,
			"YARD/Stock",
			l.lot,
			entities.Qty(l.qty),
			entities.Qty(0),
			&arrived,
			entities.Provenance{PackageID: "PKG-" + string(l.lot)},
		)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	return inventory.LoadRecords(records)
}
