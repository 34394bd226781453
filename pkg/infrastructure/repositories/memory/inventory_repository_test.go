package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

func at(d int) *time.Time {
	t := time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func stockRecord(id string, lot entities.LotID, qty int64, inDate *time.Time) entities.InventoryRecord {
	return entities.InventoryRecord{
		ID:               id,
		ProductID:        "SLAB",
		Location:         "WH/Stock",
		LotID:            lot,
		Quantity:         entities.Qty(qty),
		ReservedQuantity: entities.Qty(0),
		InDate:           inDate,
		Provenance:       entities.Provenance{PackageID: "PKG-" + id},
	}
}

func newLoadedInventory(t *testing.T, records ...entities.InventoryRecord) *InventoryRepository {
	t.Helper()
	repo := NewInventoryRepository()
	for _, record := range records {
		if err := repo.AddRecord(record); err != nil {
			t.Fatalf("Failed to add record: %v", err)
		}
	}
	return repo
}

func TestInventoryRepository_FetchRecords(t *testing.T) {
	other := stockRecord("Q9", "LOT-Z", 5, at(1))
	other.Location = "WH/Output"

	repo := newLoadedInventory(t,
		stockRecord("Q2", "LOT-B", 6, at(2)),
		stockRecord("Q1", "LOT-A", 8, at(1)),
		stockRecord("Q3", "LOT-C", 1, nil),
		other,
	)

	records, err := repo.FetchRecords(context.Background(), "SLAB", "WH/Stock")
	if err != nil {
		t.Fatalf("Failed to fetch records: %v", err)
	}

	expected := []string{"Q3", "Q1", "Q2"}
	if len(records) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(records))
	}
	for i, id := range expected {
		if records[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, records[i].ID)
		}
	}
}

func TestInventoryRepository_AddRecordRejectsDuplicates(t *testing.T) {
	repo := newLoadedInventory(t, stockRecord("Q1", "LOT-A", 8, at(1)))

	if err := repo.AddRecord(stockRecord("Q1", "LOT-B", 2, at(2))); err == nil {
		t.Fatal("Expected duplicate record to be rejected")
	}
}

func TestInventoryRepository_Claim(t *testing.T) {
	tests := []struct {
		name             string
		requested        int64
		alreadyReserved  int64
		expectedClaimed  int64
		expectedFirstRes int64
	}{
		{"whole_lot", 10, 0, 10, 6},
		{"less_than_lot", 7, 0, 7, 6},
		{"more_than_lot", 25, 0, 10, 6},
		{"partially_taken_by_competitor", 10, 4, 6, 6},
		{"nothing_requested", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newLoadedInventory(t,
				stockRecord("Q1", "LOT-A", 6, at(1)),
				stockRecord("Q2", "LOT-A", 4, at(2)),
				stockRecord("Q3", "LOT-B", 9, at(1)),
			)
			if tt.alreadyReserved > 0 {
				if err := repo.Reserve("Q2", entities.Qty(tt.alreadyReserved)); err != nil {
					t.Fatalf("Failed to reserve: %v", err)
				}
			}

			claimed, err := repo.Claim(context.Background(), "SLAB", "WH/Stock", "LOT-A", entities.Qty(tt.requested))
			if err != nil {
				t.Fatalf("Claim failed: %v", err)
			}
			if !claimed.Equal(entities.Qty(tt.expectedClaimed)) {
				t.Errorf("Expected claimed %d, got %s", tt.expectedClaimed, claimed)
			}

			records, _ := repo.FetchRecords(context.Background(), "SLAB", "WH/Stock")
			for _, record := range records {
				if record.ID == "Q1" && !record.ReservedQuantity.Equal(entities.Qty(tt.expectedFirstRes)) {
					t.Errorf("Expected oldest record reserved %d first, got %s", tt.expectedFirstRes, record.ReservedQuantity)
				}
				if record.ID == "Q3" && !record.ReservedQuantity.IsZero() {
					t.Errorf("Claim touched another lot: %s", record.ReservedQuantity)
				}
				if record.ReservedQuantity.GreaterThan(record.Quantity) {
					t.Errorf("Record %s over-reserved: %s of %s", record.ID, record.ReservedQuantity, record.Quantity)
				}
			}
		})
	}
}

func TestInventoryRepository_ConcurrentClaimsNeverOverReserve(t *testing.T) {
	repo := newLoadedInventory(t,
		stockRecord("Q1", "LOT-A", 6, at(1)),
		stockRecord("Q2", "LOT-A", 4, at(2)),
	)

	const workers = 20
	var wg sync.WaitGroup
	results := make([]entities.Quantity, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			claimed, err := repo.Claim(context.Background(), "SLAB", "WH/Stock", "LOT-A", entities.Qty(10))
			if err != nil {
				t.Errorf("Claim failed: %v", err)
			}
			results[slot] = claimed
		}(i)
	}
	wg.Wait()

	total := entities.Qty(0)
	winners := 0
	for _, claimed := range results {
		total = total.Add(claimed)
		if claimed.IsPositive() {
			winners++
		}
	}
	if !total.Equal(entities.Qty(10)) {
		t.Errorf("Expected exactly 10 claimed in total, got %s", total)
	}
	if winners != 1 {
		t.Errorf("Expected a single winning claim for the whole lot, got %d", winners)
	}
}

func TestInventoryRepository_LotProvenance(t *testing.T) {
	repo := newLoadedInventory(t,
		stockRecord("Q2", "LOT-A", 4, at(2)),
		stockRecord("Q1", "LOT-A", 6, at(1)),
	)

	provenance, found, err := repo.LotProvenance(context.Background(), "SLAB", "WH/Stock", "LOT-A")
	if err != nil {
		t.Fatalf("LotProvenance failed: %v", err)
	}
	if !found || provenance.PackageID != "PKG-Q1" {
		t.Errorf("Expected provenance of oldest record PKG-Q1, got %+v (found=%v)", provenance, found)
	}

	_, found, err = repo.LotProvenance(context.Background(), "SLAB", "WH/Stock", "LOT-X")
	if err != nil || found {
		t.Errorf("Expected no provenance for an unknown lot, got found=%v err=%v", found, err)
	}
}

func TestInventoryRepository_ReserveValidation(t *testing.T) {
	repo := newLoadedInventory(t, stockRecord("Q1", "LOT-A", 3, at(1)))

	if err := repo.Reserve("Q1", entities.Qty(4)); err == nil {
		t.Error("Expected reserving beyond availability to fail")
	}
	if err := repo.Reserve("QX", entities.Qty(1)); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
