package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// AggregateLots collapses stock records into one entry per lot.
// Each lot carries the summed free quantity of its records and the earliest
// arrival among them (a record without arrival makes the lot undated).
// Lots whose free quantity is not strictly positive at the given rounding are
// dropped. The result is ordered by arrival, undated lots first, then by lot identity.
func AggregateLots(records []entities.InventoryRecord, rounding entities.Rounding) []entities.Lot {
	byLot := make(map[entities.LotID]*entities.Lot)
	undated := make(map[entities.LotID]bool)
	var order []entities.LotID

	for _, record := range records {
		lot, exists := byLot[record.LotID]
		if !exists {
			lot = &entities.Lot{ID: record.LotID, Available: decimal.Zero}
			byLot[record.LotID] = lot
			order = append(order, record.LotID)
		}
		lot.Available = lot.Available.Add(record.Available())

		if record.InDate == nil {
			undated[record.LotID] = true
			continue
		}
		if lot.InDate == nil || record.InDate.Before(*lot.InDate) {
			inDate := *record.InDate
			lot.InDate = &inDate
		}
	}

	lots := make([]entities.Lot, 0, len(order))
	for _, id := range order {
		lot := byLot[id]
		if !rounding.IsPositive(lot.Available) {
			continue
		}
		if undated[id] {
			lot.InDate = nil
		}
		lots = append(lots, *lot)
	}

	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].ArrivedBefore(lots[j]) {
			return true
		}
		if lots[j].ArrivedBefore(lots[i]) {
			return false
		}
		return lots[i].ID < lots[j].ID
	})

	return lots
}

// SortRecordsFIFO orders records by arrival (undated first), then by record id
func SortRecordsFIFO(records []entities.InventoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return recordBefore(records[i].InDate, records[j].InDate, records[i].ID, records[j].ID)
	})
}

func recordBefore(a, b *time.Time, idA, idB string) bool {
	switch {
	case a == nil && b != nil:
		return true
	case a != nil && b == nil:
		return false
	case a != nil && b != nil && !a.Equal(*b):
		return a.Before(*b)
	default:
		return idA < idB
	}
}
