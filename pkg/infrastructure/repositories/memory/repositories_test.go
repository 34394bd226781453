package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

func TestDemandRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDemandRepository()

	require.NoError(t, repo.LoadDemands([]*entities.Demand{
		{ID: "D1", ProductID: "SLAB", Location: "WH/Stock", Quantity: entities.Qty(15), DestinationIDs: []string{"D2"}},
		{ID: "D2", ProductID: "SLAB", Location: "WH/Output", Quantity: entities.Qty(15), OriginIDs: []string{"D1"}},
	}))
	assert.Error(t, repo.LoadDemands([]*entities.Demand{{ID: "D1"}}))

	demand, err := repo.Get(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, entities.Unfulfilled, demand.State)

	demand.DestinationIDs[0] = "mutated"
	again, err := repo.Get(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, []string{"D2"}, again.DestinationIDs)

	require.NoError(t, repo.UpdateState(ctx, "D1", entities.FullyReserved))
	updated, err := repo.Get(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, entities.FullyReserved, updated.State)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "D1", all[0].ID)
	assert.Equal(t, "D2", all[1].ID)

	_, err = repo.Get(ctx, "D9")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateState(ctx, "D9", entities.Done), repositories.ErrNotFound)
}

func TestAllocationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAllocationRepository()
	demand := entities.Demand{ID: "D1", ProductID: "SLAB", Location: "WH/Stock"}
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := entities.NewAllocationRecord(demand, "LOT-A", entities.Qty(8), entities.Provenance{}, now)
	require.NoError(t, err)
	second, err := entities.NewAllocationRecord(demand, "LOT-B", entities.MustQuantity("6.5"), entities.Provenance{}, now)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.Error(t, repo.Create(ctx, first), "duplicate ids are rejected")
	assert.Error(t, repo.Create(ctx, nil))

	records, err := repo.ListByDemand(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entities.LotID("LOT-A"), records[0].LotID)
	assert.Equal(t, entities.LotID("LOT-B"), records[1].LotID)

	total, err := repo.TotalReserved(ctx, "D1")
	require.NoError(t, err)
	assert.True(t, total.Equal(entities.MustQuantity("14.5")), "got %s", total)

	none, err := repo.TotalReserved(ctx, "D2")
	require.NoError(t, err)
	assert.True(t, none.IsZero())

	assert.Len(t, repo.All(), 2)
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()

	require.NoError(t, repo.LoadProducts([]*entities.Product{{ID: "SLAB", Tracking: entities.TrackingLot, CategoryID: "stone"}}))
	require.Error(t, repo.LoadProducts([]*entities.Product{{ID: "SLAB"}}))
	require.NoError(t, repo.LoadCategories([]*entities.Category{{ID: "stone", RemovalStrategy: entities.StrategyWholeLot}}))
	require.NoError(t, repo.LoadLocations([]*entities.Location{{ID: "WH"}, {ID: "WH/Stock", ParentID: "WH"}}))

	product, err := repo.Product(ctx, "SLAB")
	require.NoError(t, err)
	assert.True(t, product.IsTracked())

	category, err := repo.Category(ctx, "stone")
	require.NoError(t, err)
	assert.Equal(t, entities.StrategyWholeLot, category.RemovalStrategy)

	location, err := repo.Location(ctx, "WH/Stock")
	require.NoError(t, err)
	assert.Equal(t, "WH", location.ParentID)

	_, err = repo.Product(ctx, "BRICK")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.Category(ctx, "wood")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.Location(ctx, "WH/Nowhere")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
