package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
)

const uniqueViolation = "23505"

// AllocationRepository stores allocation records in PostgreSQL
type AllocationRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewAllocationRepository creates a PostgreSQL allocation repository
func NewAllocationRepository(log *slog.Logger, pool *pgxpool.Pool) *AllocationRepository {
	if log == nil {
		log = slog.Default()
	}
	return &AllocationRepository{log: log, pool: pool}
}

// Verify interface compliance
var _ repositories.AllocationRepository = (*AllocationRepository)(nil)

// Create inserts a new allocation record
func (r *AllocationRepository) Create(ctx context.Context, record *entities.AllocationRecord) error {
	if record == nil {
		return fmt.Errorf("allocation record cannot be nil")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO allocation_records
			(id, demand_id, product_id, location, lot_id, quantity, package_id, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		record.ID, record.DemandID, string(record.ProductID), record.Location, string(record.LotID),
		record.Quantity.String(), record.Provenance.PackageID, record.Provenance.OwnerID, record.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("allocation record %s already exists", record.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert allocation record %s: %w", record.ID, err)
	}
	return nil
}

// ListByDemand returns the demand's allocation records in creation order
func (r *AllocationRepository) ListByDemand(ctx context.Context, demandID string) ([]*entities.AllocationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, demand_id, product_id, location, lot_id, quantity::text, package_id, owner_id, created_at
		FROM allocation_records
		WHERE demand_id = $1
		ORDER BY created_at ASC, id ASC`, demandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations of %s: %w", demandID, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entities.AllocationRecord, error) {
		var (
			record           entities.AllocationRecord
			productID, lotID string
			quantity         string
		)
		if err := row.Scan(
			&record.ID, &record.DemandID, &productID, &record.Location, &lotID,
			&quantity, &record.Provenance.PackageID, &record.Provenance.OwnerID, &record.CreatedAt,
		); err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("allocation %s quantity: %w", record.ID, err)
		}
		record.ProductID = entities.ProductID(productID)
		record.LotID = entities.LotID(lotID)
		record.Quantity = qty
		return &record, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read allocations of %s: %w", demandID, err)
	}
	return records, nil
}

// TotalReserved sums the quantity reserved for the demand
func (r *AllocationRepository) TotalReserved(ctx context.Context, demandID string) (entities.Quantity, error) {
	var total string
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0)::text FROM allocation_records WHERE demand_id = $1`,
		demandID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum allocations of %s: %w", demandID, err)
	}
	return decimal.NewFromString(total)
}
