package testing

import (
	"fmt"
	"time"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/memory"
)

const (
	// SlabProduct is a lot-tracked product kept under whole-lot removal
	SlabProduct entities.ProductID = "SLAB"
	// SandProduct is an untracked bulk product
	SandProduct entities.ProductID = "SAND"
	// StockLocation is where the granite yard keeps its stock
	StockLocation = "WH/Stock"
)

// Day returns midnight UTC of the given day of January 2024
func Day(d int) *time.Time {
	t := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Record builds a slab record at the stock location. Day 0 leaves it undated.
// The record's package is "PKG-" followed by its id.
func Record(id, lot, qty string, day int) *entities.InventoryRecord {
	var inDate *time.Time
	if day > 0 {
		inDate = Day(day)
	}
	record, err := entities.NewInventoryRecord(id, SlabProduct, StockLocation, entities.LotID(lot),
		entities.MustQuantity(qty), entities.Qty(0), inDate,
		entities.Provenance{PackageID: "PKG-" + id, OwnerID: "ACME"})
	if err != nil {
		panic(err)
	}
	return record
}

// BuildGraniteTestData builds the granite yard: three slab lots of 8, 6 and 10
// arriving on consecutive days, 100 units of sand, a slab demand D1 of 15 and
// a sand demand D2 of 30.
func BuildGraniteTestData() (*memory.CatalogRepository, *memory.InventoryRepository, *memory.DemandRepository) {
	catalog := memory.NewCatalogRepository()
	inventoryRepo := memory.NewInventoryRepository()
	demandRepo := memory.NewDemandRepository()

	m2, err := entities.NewUnitOfMeasure("m2", entities.MustQuantity("0.01"), entities.Qty(1))
	if err != nil {
		panic(err)
	}

	slab, err := entities.NewProduct(SlabProduct, "Granite slab", entities.TrackingLot, "stone", m2)
	if err != nil {
		panic(err)
	}
	sand, err := entities.NewProduct(SandProduct, "Washed sand", entities.TrackingNone, "bulk", m2)
	if err != nil {
		panic(err)
	}

	must(catalog.LoadProducts([]*entities.Product{slab, sand}))
	must(catalog.LoadCategories([]*entities.Category{
		{ID: "stone", RemovalStrategy: entities.StrategyWholeLot},
		{ID: "bulk", RemovalStrategy: entities.StrategyFIFO},
	}))
	must(catalog.LoadLocations([]*entities.Location{
		{ID: "WH", RemovalStrategy: entities.StrategyFIFO},
		{ID: StockLocation, ParentID: "WH"},
	}))

	sandRecord, err := entities.NewInventoryRecord("R4", SandProduct, StockLocation, entities.NoLot,
		entities.Qty(100), entities.Qty(0), Day(1), entities.Provenance{})
	if err != nil {
		panic(err)
	}
	must(inventoryRepo.LoadRecords([]*entities.InventoryRecord{
		Record("R1", "A", "8", 1),
		Record("R2", "B", "6", 2),
		Record("R3", "C", "10", 3),
		sandRecord,
	}))

	demands := make([]*entities.Demand, 0, 2)
	for i, want := range []struct {
		product entities.ProductID
		qty     int64
	}{
		{SlabProduct, 15},
		{SandProduct, 30},
	} {
		demand, err := entities.NewDemand(fmt.Sprintf("D%d", i+1), want.product, StockLocation, entities.Qty(want.qty))
		if err != nil {
			panic(err)
		}
		demands = append(demands, demand)
	}
	must(demandRepo.LoadDemands(demands))

	return catalog, inventoryRepo, demandRepo
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
