package allocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/services"
	"github.com/vsinha/wholelot/pkg/infrastructure/events"
	"github.com/vsinha/wholelot/pkg/infrastructure/logging"
	"github.com/vsinha/wholelot/pkg/infrastructure/metrics"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/memory"
)

const (
	stock  = "WH/Stock"
	output = "WH/Output"
)

var (
	fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	units    = entities.ReferenceUnit("Units", entities.MustQuantity("0.01"))
)

type fixture struct {
	inventory   *memory.InventoryRepository
	allocations *memory.AllocationRepository
	demands     *memory.DemandRepository
	catalog     *memory.CatalogRepository
	events      *events.InMemoryEventStore
	metrics     *metrics.Metrics
	nextRecord  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		inventory:   memory.NewInventoryRepository(),
		allocations: memory.NewAllocationRepository(),
		demands:     memory.NewDemandRepository(),
		catalog:     memory.NewCatalogRepository(),
		events:      events.NewInMemoryEventStore(logging.Discard()),
		metrics:     metrics.New(prometheus.NewRegistry()),
	}

	require.NoError(t, f.catalog.LoadProducts([]*entities.Product{
		{ID: "SLAB", Tracking: entities.TrackingLot, CategoryID: "stone", UnitOfMeasure: units},
		{ID: "SAND", Tracking: entities.TrackingNone, CategoryID: "stone", UnitOfMeasure: units},
	}))
	require.NoError(t, f.catalog.LoadCategories([]*entities.Category{{ID: "stone"}}))
	require.NoError(t, f.catalog.LoadLocations([]*entities.Location{
		{ID: "WH", RemovalStrategy: entities.StrategyWholeLot},
		{ID: stock, ParentID: "WH"},
		{ID: output, ParentID: "WH"},
	}))
	return f
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Inventory:   f.inventory,
		Allocations: f.allocations,
		Demands:     f.demands,
		Catalog:     f.catalog,
		Events:      f.events,
		Metrics:     f.metrics,
		Logger:      logging.Discard(),
		Clock:       func() time.Time { return fixedNow },
	}
}

// addLot adds one record for the lot; day orders lots FIFO
func (f *fixture) addLot(t *testing.T, location string, lot entities.LotID, qty string, day int) string {
	t.Helper()
	f.nextRecord++
	id := "Q" + string(rune('0'+f.nextRecord/10)) + string(rune('0'+f.nextRecord%10))
	inDate := time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.inventory.AddRecord(entities.InventoryRecord{
		ID:               id,
		ProductID:        "SLAB",
		Location:         location,
		LotID:            lot,
		Quantity:         entities.MustQuantity(qty),
		ReservedQuantity: entities.Qty(0),
		InDate:           &inDate,
		Provenance:       entities.Provenance{PackageID: "PKG-" + string(lot)},
	}))
	return id
}

func (f *fixture) addDemand(t *testing.T, demand entities.Demand) entities.Demand {
	t.Helper()
	if demand.ProductID == "" {
		demand.ProductID = "SLAB"
	}
	if demand.Location == "" {
		demand.Location = stock
	}
	require.NoError(t, f.demands.LoadDemands([]*entities.Demand{&demand}))
	return demand
}

func (f *fixture) demand(t *testing.T, id string) entities.Demand {
	t.Helper()
	d, err := f.demands.Get(context.Background(), id)
	require.NoError(t, err)
	return *d
}

func (f *fixture) eventTypes(t *testing.T, streamID string) []string {
	t.Helper()
	stream, err := f.events.ReadEvents(streamID, 1)
	require.NoError(t, err)
	types := make([]string, len(stream))
	for i, e := range stream {
		types[i] = e.Type()
	}
	return types
}

func (f *fixture) resolver() services.StrategyResolver {
	return services.NewHierarchicalResolver(f.catalog, entities.StrategyFIFO)
}

// racyInventory lets a competitor reserve part of a lot just before a claim on it
type racyInventory struct {
	*memory.InventoryRepository
	mu     sync.Mutex
	steals map[entities.LotID][]steal
}

type steal struct {
	recordID string
	quantity entities.Quantity
}

func newRacyInventory(inner *memory.InventoryRepository) *racyInventory {
	return &racyInventory{InventoryRepository: inner, steals: make(map[entities.LotID][]steal)}
}

func (r *racyInventory) stealBeforeClaim(lot entities.LotID, recordID string, quantity string) {
	r.steals[lot] = append(r.steals[lot], steal{recordID: recordID, quantity: entities.MustQuantity(quantity)})
}

func (r *racyInventory) Claim(
	ctx context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
	requested entities.Quantity,
) (entities.Quantity, error) {
	r.mu.Lock()
	pending := r.steals[lotID]
	delete(r.steals, lotID)
	r.mu.Unlock()

	for _, s := range pending {
		if err := r.InventoryRepository.Reserve(s.recordID, s.quantity); err != nil {
			return entities.Qty(0), err
		}
	}
	return r.InventoryRepository.Claim(ctx, productID, location, lotID, requested)
}

// failingInventory fails claims on the given lots
type failingInventory struct {
	*memory.InventoryRepository
	failLots map[entities.LotID]bool
}

func (f *failingInventory) Claim(
	ctx context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
	requested entities.Quantity,
) (entities.Quantity, error) {
	if f.failLots[lotID] {
		return entities.Qty(0), errors.New("lock timeout")
	}
	return f.InventoryRepository.Claim(ctx, productID, location, lotID, requested)
}

// failingAllocations refuses to persist allocation records while fail is set
type failingAllocations struct {
	*memory.AllocationRepository
	fail bool
}

func (f *failingAllocations) Create(ctx context.Context, record *entities.AllocationRecord) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.AllocationRepository.Create(ctx, record)
}

// panickingAllocations blows up on every insert
type panickingAllocations struct {
	*memory.AllocationRepository
}

func (p *panickingAllocations) Create(context.Context, *entities.AllocationRecord) error {
	panic("connection reset")
}

// scriptedInventory returns fixed claim results for the given lots without
// touching stock, and panics for lots listed in panicLots
type scriptedInventory struct {
	*memory.InventoryRepository
	claims    map[entities.LotID]entities.Quantity
	panicLots map[entities.LotID]bool
}

func (s *scriptedInventory) Claim(
	ctx context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
	requested entities.Quantity,
) (entities.Quantity, error) {
	if s.panicLots[lotID] {
		panic("nil pointer in store driver")
	}
	if reserved, ok := s.claims[lotID]; ok {
		return reserved, nil
	}
	return s.InventoryRepository.Claim(ctx, productID, location, lotID, requested)
}

func lotIDs(lots []entities.Lot) []entities.LotID {
	ids := make([]entities.LotID, len(lots))
	for i, lot := range lots {
		ids[i] = lot.ID
	}
	return ids
}
