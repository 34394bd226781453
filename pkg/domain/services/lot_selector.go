package services

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// SelectWholeLots picks complete lots to cover demand without ever splitting one.
//
// Lots are considered in the given order (FIFO from AggregateLots):
//  1. a lot whose quantity equals the demand is returned alone;
//  2. otherwise each lot that fits in what remains is taken, larger lots are
//     skipped, and the scan stops once nothing remains;
//  3. if something remains, one more pass over the lots not taken looks for a
//     single lot equal to the remainder.
//
// The selection never exceeds the demand. It is a single pass heuristic:
// combinations of leftover lots that would close the gap are not searched.
// A non-positive demand yields an empty selection with the demand as unmet.
func SelectWholeLots(lots []entities.Lot, demand entities.Quantity, rounding entities.Rounding) entities.SelectionResult {
	if len(lots) == 0 || !rounding.IsPositive(demand) {
		return entities.SelectionResult{Lots: []entities.Lot{}, Unmet: demand}
	}

	for _, lot := range lots {
		if rounding.Equal(lot.Available, demand) {
			return entities.SelectionResult{
				Lots:  []entities.Lot{lot},
				Unmet: decimal.Zero,
			}
		}
	}

	selected := make([]entities.Lot, 0, len(lots))
	taken := make([]bool, len(lots))
	remaining := demand

	for i, lot := range lots {
		if rounding.Compare(lot.Available, remaining) > 0 {
			continue
		}
		selected = append(selected, lot)
		taken[i] = true
		remaining = remaining.Sub(lot.Available)

		if rounding.IsZero(remaining) {
			break
		}
	}

	if rounding.IsPositive(remaining) {
		for i, lot := range lots {
			if taken[i] {
				continue
			}
			if rounding.Equal(lot.Available, remaining) {
				selected = append(selected, lot)
				remaining = decimal.Zero
				break
			}
		}
	}

	if rounding.IsZero(remaining) {
		remaining = decimal.Zero
	}

	return entities.SelectionResult{Lots: selected, Unmet: remaining}
}
