package repositories

import (
	"context"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

// InventoryRepository provides access to the backing stock records.
// Claim is the only mutating operation and must be atomic per lot.
type InventoryRepository interface {
	// FetchRecords returns a snapshot of the product's records at the location
	FetchRecords(
		ctx context.Context,
		productID entities.ProductID,
		location string,
	) ([]entities.InventoryRecord, error)

	// Claim reserves up to requested units of the lot and returns what it actually
	// reserved: never more than requested, never negative.
	Claim(
		ctx context.Context,
		productID entities.ProductID,
		location string,
		lotID entities.LotID,
		requested entities.Quantity,
	) (entities.Quantity, error)

	// LotProvenance returns the provenance of the first record of the lot at the location
	LotProvenance(
		ctx context.Context,
		productID entities.ProductID,
		location string,
		lotID entities.LotID,
	) (entities.Provenance, bool, error)
}
