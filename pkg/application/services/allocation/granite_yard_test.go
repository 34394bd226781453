package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/services"
	"github.com/vsinha/wholelot/pkg/infrastructure/logging"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/memory"
	th "github.com/vsinha/wholelot/pkg/infrastructure/testing"
)

func TestAssigner_GraniteYard(t *testing.T) {
	catalog, inventory, demands := th.BuildGraniteTestData()
	allocations := memory.NewAllocationRepository()

	assigner, err := NewAssigner(Dependencies{
		Inventory:   inventory,
		Allocations: allocations,
		Demands:     demands,
		Catalog:     catalog,
		Logger:      logging.Discard(),
	}, services.NewHierarchicalResolver(catalog, entities.StrategyFIFO), 2)
	require.NoError(t, err)

	result, err := assigner.AssignDemands(context.Background(), []string{"D1", "D2"}, AssignOptions{})
	require.NoError(t, err)
	require.NoError(t, result.Errors())
	require.Len(t, result.Assignments, 2)

	slab := result.Assignments[0]
	assert.Equal(t, RouteWholeLot, slab.Route)
	require.NotNil(t, slab.Outcome)
	assert.Equal(t, []entities.LotID{"A", "B"}, lotIDs(slab.Outcome.Selection))
	assert.True(t, slab.Outcome.NewlyReserved.Equal(entities.Qty(14)))
	assert.True(t, slab.Outcome.Shortfall.Equal(entities.Qty(1)))
	assert.Equal(t, entities.PartiallyReserved, slab.Outcome.State)

	sand := result.Assignments[1]
	assert.Equal(t, RouteStandard, sand.Route)
	require.NotNil(t, sand.Outcome)
	assert.Equal(t, entities.FullyReserved, sand.Outcome.State)

	// lot C stays untouched; whole lots A and B are fully reserved
	for _, record := range inventory.AllRecords() {
		switch record.LotID {
		case "A", "B":
			assert.True(t, record.Available().IsZero(), "lot %s", record.LotID)
		case "C":
			assert.True(t, record.ReservedQuantity.IsZero(), "lot C")
		}
	}

	records, err := allocations.ListByDemand(context.Background(), "D1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "PKG-R1", records[0].Provenance.PackageID)
}
