package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
	"github.com/vsinha/wholelot/pkg/domain/services"
)

// InventoryRepository provides in-memory inventory storage.
// Claims run under a single mutex, so a claim on a lot is atomic with
// respect to every other read or claim.
type InventoryRepository struct {
	mu      sync.RWMutex
	records []entities.InventoryRecord
	index   map[string]int
}

// NewInventoryRepository creates a new in-memory inventory repository
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		records: []entities.InventoryRecord{},
		index:   make(map[string]int),
	}
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

// LoadRecords loads inventory records into the repository
func (r *InventoryRepository) LoadRecords(records []*entities.InventoryRecord) error {
	for _, record := range records {
		if err := r.AddRecord(*record); err != nil {
			return err
		}
	}
	return nil
}

// AddRecord adds an inventory record to the repository
func (r *InventoryRepository) AddRecord(record entities.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[record.ID]; exists {
		return fmt.Errorf("inventory record already exists: %s", record.ID)
	}
	r.index[record.ID] = len(r.records)
	r.records = append(r.records, record)
	return nil
}

// Reserve marks quantity of a single record as reserved outside of any claim,
// the way a competing process would.
func (r *InventoryRepository) Reserve(recordID string, quantity entities.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.index[recordID]
	if !exists {
		return fmt.Errorf("inventory record %s: %w", recordID, repositories.ErrNotFound)
	}
	record := &r.records[i]
	if quantity.GreaterThan(record.Available()) {
		return fmt.Errorf("cannot reserve %s of record %s, only %s available", quantity, recordID, record.Available())
	}
	record.ReservedQuantity = record.ReservedQuantity.Add(quantity)
	return nil
}

// FetchRecords returns a copy of the product's records at the location
func (r *InventoryRepository) FetchRecords(
	_ context.Context,
	productID entities.ProductID,
	location string,
) ([]entities.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]entities.InventoryRecord, 0)
	for _, record := range r.records {
		if record.ProductID == productID && record.Location == location {
			result = append(result, record)
		}
	}
	services.SortRecordsFIFO(result)
	return result, nil
}

// AllRecords returns a copy of every record in FIFO order
func (r *InventoryRepository) AllRecords() []entities.InventoryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := append([]entities.InventoryRecord(nil), r.records...)
	services.SortRecordsFIFO(result)
	return result
}

// Claim reserves up to requested units of the lot across its records in FIFO
// order and returns the quantity actually reserved
func (r *InventoryRepository) Claim(
	_ context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
	requested entities.Quantity,
) (entities.Quantity, error) {
	if !requested.IsPositive() {
		return decimal.Zero, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.lotRecordsLocked(productID, location, lotID)

	claimed := decimal.Zero
	remaining := requested
	for _, i := range candidates {
		if !remaining.IsPositive() {
			break
		}
		record := &r.records[i]
		available := record.Available()
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(available, remaining)
		record.ReservedQuantity = record.ReservedQuantity.Add(take)
		claimed = claimed.Add(take)
		remaining = remaining.Sub(take)
	}
	return claimed, nil
}

// LotProvenance returns the provenance of the first record of the lot at the location
func (r *InventoryRepository) LotProvenance(
	_ context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
) (entities.Provenance, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.lotRecordsLocked(productID, location, lotID)
	if len(candidates) == 0 {
		return entities.Provenance{}, false, nil
	}
	return r.records[candidates[0]].Provenance, true, nil
}

// lotRecordsLocked returns indexes of the lot's records in FIFO order; callers hold mu
func (r *InventoryRepository) lotRecordsLocked(productID entities.ProductID, location string, lotID entities.LotID) []int {
	matching := make([]entities.InventoryRecord, 0)
	for _, record := range r.records {
		if record.ProductID == productID && record.Location == location && record.LotID == lotID {
			matching = append(matching, record)
		}
	}
	services.SortRecordsFIFO(matching)

	indexes := make([]int, len(matching))
	for i, record := range matching {
		indexes[i] = r.index[record.ID]
	}
	return indexes
}
