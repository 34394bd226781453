package services

import (
	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// NextState derives a demand's reservation state after one allocation call.
//
// A call that reserved nothing leaves the state untouched. Otherwise the
// cumulative reservation decides: covering the total demand makes the demand
// FullyReserved, anything less makes it PartiallyReserved.
func NextState(
	current entities.ReservationState,
	newlyReserved entities.Quantity,
	totalReserved entities.Quantity,
	totalDemand entities.Quantity,
	rounding entities.Rounding,
) (entities.ReservationState, entities.Transition) {
	if !rounding.IsPositive(newlyReserved) {
		return current, entities.NoProgress
	}
	if rounding.Compare(totalReserved, totalDemand) >= 0 {
		return entities.FullyReserved, entities.ReservedFully
	}
	return entities.PartiallyReserved, entities.ReservedPartially
}
