package entities

import (
	"testing"
	"time"
)

func TestInventoryRecord_Validation(t *testing.T) {
	inDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	valid, err := NewInventoryRecord("Q1", "SLAB", "WH/Stock", "LOT001", Qty(10), Qty(4), &inDate, Provenance{PackageID: "PACK1"})
	if err != nil {
		t.Fatalf("Expected valid record creation to succeed: %v", err)
	}
	if !valid.Available().Equal(Qty(6)) {
		t.Errorf("Expected available 6, got %s", valid.Available())
	}

	testCases := []struct {
		name        string
		id          string
		productID   ProductID
		location    string
		quantity    Quantity
		reserved    Quantity
		expectError string
	}{
		{"empty id", "", "SLAB", "WH/Stock", Qty(10), Qty(0), "record id cannot be empty"},
		{"empty product", "Q1", "", "WH/Stock", Qty(10), Qty(0), "product id cannot be empty"},
		{"empty location", "Q1", "SLAB", "", Qty(10), Qty(0), "location cannot be empty"},
		{"negative quantity", "Q1", "SLAB", "WH/Stock", Qty(-5), Qty(0), "quantity cannot be negative, got -5"},
		{"negative reserved", "Q1", "SLAB", "WH/Stock", Qty(5), Qty(-1), "reserved quantity cannot be negative, got -1"},
		{"over reserved", "Q1", "SLAB", "WH/Stock", Qty(5), Qty(6), "reserved quantity 6 exceeds quantity 5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInventoryRecord(tc.id, tc.productID, tc.location, "LOT001", tc.quantity, tc.reserved, &inDate, Provenance{})
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestLot_ArrivedBefore(t *testing.T) {
	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	undated := Lot{ID: "A"}
	first := Lot{ID: "B", InDate: &early}
	second := Lot{ID: "C", InDate: &late}

	if !undated.ArrivedBefore(first) {
		t.Errorf("Expected undated lot to sort before dated lot")
	}
	if first.ArrivedBefore(undated) {
		t.Errorf("Expected dated lot not to sort before undated lot")
	}
	if !first.ArrivedBefore(second) {
		t.Errorf("Expected earlier lot to sort first")
	}
	if undated.ArrivedBefore(Lot{ID: "D"}) {
		t.Errorf("Expected two undated lots to be unordered by arrival")
	}
}

func TestSelectionResult_Total(t *testing.T) {
	result := SelectionResult{
		Lots:  []Lot{{ID: "A", Available: Qty(8)}, {ID: "B", Available: Qty(6)}},
		Unmet: Qty(1),
	}

	if !result.Total().Equal(Qty(14)) {
		t.Errorf("Expected total 14, got %s", result.Total())
	}
	ids := result.LotIDs()
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Errorf("Expected lot ids [A B], got %v", ids)
	}
}

func TestProvenance_IsEmpty(t *testing.T) {
	if !(Provenance{}).IsEmpty() {
		t.Errorf("Expected zero provenance to be empty")
	}
	if (Provenance{OwnerID: "ACME"}).IsEmpty() {
		t.Errorf("Expected provenance with owner not to be empty")
	}
}
