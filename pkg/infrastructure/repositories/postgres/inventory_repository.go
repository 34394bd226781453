package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

// InventoryRepository stores inventory records in PostgreSQL.
// A claim locks the lot's rows with SELECT ... FOR UPDATE in FIFO order, so
// concurrent claims on the same lot serialize on the row locks.
type InventoryRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewInventoryRepository creates a PostgreSQL inventory repository
func NewInventoryRepository(log *slog.Logger, pool *pgxpool.Pool) *InventoryRepository {
	if log == nil {
		log = slog.Default()
	}
	return &InventoryRepository{log: log, pool: pool}
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

const selectRecords = `
	SELECT id, product_id, location, lot_id, quantity::text, reserved::text, in_date, package_id, owner_id
	FROM inventory_records
	WHERE product_id = $1 AND location = $2`

const fifoOrder = ` ORDER BY in_date ASC NULLS FIRST, id ASC`

// FetchRecords returns the product's records at the location in FIFO order
func (r *InventoryRepository) FetchRecords(
	ctx context.Context,
	productID entities.ProductID,
	location string,
) ([]entities.InventoryRecord, error) {
	rows, err := r.pool.Query(ctx, selectRecords+fifoOrder, string(productID), location)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory for %s at %s: %w", productID, location, err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory for %s at %s: %w", productID, location, err)
	}
	return records, nil
}

// Claim reserves up to requested units of the lot inside one transaction
func (r *InventoryRepository) Claim(
	ctx context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
	requested entities.Quantity,
) (entities.Quantity, error) {
	if !requested.IsPositive() {
		return decimal.Zero, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, (quantity - reserved)::text
		FROM inventory_records
		WHERE product_id = $1 AND location = $2 AND lot_id = $3`+fifoOrder+`
		FOR UPDATE`,
		string(productID), location, string(lotID))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock lot %s: %w", lotID, err)
	}

	type lockedRow struct {
		id        string
		available decimal.Decimal
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lockedRow, error) {
		var id, available string
		if err := row.Scan(&id, &available); err != nil {
			return lockedRow{}, err
		}
		qty, err := decimal.NewFromString(available)
		return lockedRow{id: id, available: qty}, err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read lot %s: %w", lotID, err)
	}

	claimed := decimal.Zero
	remaining := requested
	for _, row := range locked {
		if !remaining.IsPositive() {
			break
		}
		if !row.available.IsPositive() {
			continue
		}
		take := decimal.Min(row.available, remaining)
		if _, err := tx.Exec(ctx,
			`UPDATE inventory_records SET reserved = reserved + $1::numeric WHERE id = $2`,
			take.String(), row.id); err != nil {
			return decimal.Zero, fmt.Errorf("failed to reserve record %s: %w", row.id, err)
		}
		claimed = claimed.Add(take)
		remaining = remaining.Sub(take)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit claim on lot %s: %w", lotID, err)
	}

	r.log.Debug("lot claimed",
		slog.String("product", string(productID)),
		slog.String("location", location),
		slog.String("lot", string(lotID)),
		slog.String("requested", requested.String()),
		slog.String("reserved", claimed.String()))
	return claimed, nil
}

// LotProvenance returns the provenance of the lot's first record in FIFO order
func (r *InventoryRepository) LotProvenance(
	ctx context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
) (entities.Provenance, bool, error) {
	var provenance entities.Provenance
	err := r.pool.QueryRow(ctx, `
		SELECT package_id, owner_id
		FROM inventory_records
		WHERE product_id = $1 AND location = $2 AND lot_id = $3`+fifoOrder+`
		LIMIT 1`,
		string(productID), location, string(lotID),
	).Scan(&provenance.PackageID, &provenance.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Provenance{}, false, nil
	}
	if err != nil {
		return entities.Provenance{}, false, fmt.Errorf("failed to read provenance of lot %s: %w", lotID, err)
	}
	return provenance, true, nil
}

func scanRecord(row pgx.CollectableRow) (entities.InventoryRecord, error) {
	var (
		record             entities.InventoryRecord
		productID, lotID   string
		quantity, reserved string
		inDate             *time.Time
	)
	if err := row.Scan(
		&record.ID, &productID, &record.Location, &lotID,
		&quantity, &reserved, &inDate,
		&record.Provenance.PackageID, &record.Provenance.OwnerID,
	); err != nil {
		return entities.InventoryRecord{}, err
	}

	var err error
	if record.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return entities.InventoryRecord{}, fmt.Errorf("record %s quantity: %w", record.ID, err)
	}
	if record.ReservedQuantity, err = decimal.NewFromString(reserved); err != nil {
		return entities.InventoryRecord{}, fmt.Errorf("record %s reserved: %w", record.ID, err)
	}
	if inDate != nil {
		utc := inDate.UTC()
		record.InDate = &utc
	}
	record.ProductID = entities.ProductID(productID)
	record.LotID = entities.LotID(lotID)
	return record, nil
}
