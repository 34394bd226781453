package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LotID identifies a lot. The empty LotID groups untracked stock.
type LotID string

// NoLot is the identity shared by records without a lot
const NoLot LotID = ""

// Provenance carries where a reserved quantity physically sits and who owns it
type Provenance struct {
	PackageID string `json:"package_id,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
}

// IsEmpty reports whether no provenance is set
func (p Provenance) IsEmpty() bool {
	return p.PackageID == "" && p.OwnerID == ""
}

// InventoryRecord represents one backing stock record of a product at a location
type InventoryRecord struct {
	ID               string
	ProductID        ProductID
	Location         string
	LotID            LotID
	Quantity         Quantity
	ReservedQuantity Quantity
	InDate           *time.Time
	Provenance       Provenance
}

// NewInventoryRecord creates a validated InventoryRecord
func NewInventoryRecord(
	id string,
	productID ProductID,
	location string,
	lotID LotID,
	quantity, reserved Quantity,
	inDate *time.Time,
	provenance Provenance,
) (*InventoryRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("record id cannot be empty")
	}
	if productID == "" {
		return nil, fmt.Errorf("product id cannot be empty")
	}
	if location == "" {
		return nil, fmt.Errorf("location cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("quantity cannot be negative, got %s", quantity)
	}
	if reserved.IsNegative() {
		return nil, fmt.Errorf("reserved quantity cannot be negative, got %s", reserved)
	}
	if reserved.GreaterThan(quantity) {
		return nil, fmt.Errorf("reserved quantity %s exceeds quantity %s", reserved, quantity)
	}

	return &InventoryRecord{
		ID:               id,
		ProductID:        productID,
		Location:         location,
		LotID:            lotID,
		Quantity:         quantity,
		ReservedQuantity: reserved,
		InDate:           inDate,
		Provenance:       provenance,
	}, nil
}

// Available returns the unreserved part of the record
func (r InventoryRecord) Available() Quantity {
	return r.Quantity.Sub(r.ReservedQuantity)
}

// Lot is a read-only snapshot of one lot's free stock at a location
type Lot struct {
	ID        LotID      `json:"lot_id"`
	Available Quantity   `json:"available"`
	InDate    *time.Time `json:"in_date,omitempty"`
}

// ArrivedBefore orders lots by arrival, nil arrival first
func (l Lot) ArrivedBefore(other Lot) bool {
	switch {
	case l.InDate == nil && other.InDate == nil:
		return false
	case l.InDate == nil:
		return true
	case other.InDate == nil:
		return false
	default:
		return l.InDate.Before(*other.InDate)
	}
}

// SelectionResult represents the lots picked for a demand and what remains unmet
type SelectionResult struct {
	Lots  []Lot    `json:"lots"`
	Unmet Quantity `json:"unmet"`
}

// Total returns the summed available quantity of the selected lots
func (s SelectionResult) Total() Quantity {
	total := decimal.Zero
	for _, lot := range s.Lots {
		total = total.Add(lot.Available)
	}
	return total
}

// LotIDs returns the selected lot identities in selection order
func (s SelectionResult) LotIDs() []LotID {
	ids := make([]LotID, len(s.Lots))
	for i, lot := range s.Lots {
		ids[i] = lot.ID
	}
	return ids
}
