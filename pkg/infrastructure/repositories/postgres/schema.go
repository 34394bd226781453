package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vsinha/wholelot/pkg/domain/entities"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory_records (
	id          TEXT PRIMARY KEY,
	product_id  TEXT NOT NULL,
	location    TEXT NOT NULL,
	lot_id      TEXT NOT NULL DEFAULT '',
	quantity    NUMERIC NOT NULL CHECK (quantity >= 0),
	reserved    NUMERIC NOT NULL DEFAULT 0 CHECK (reserved >= 0 AND reserved <= quantity),
	in_date     TIMESTAMPTZ NULL,
	package_id  TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS inventory_records_scope_idx
	ON inventory_records (product_id, location, lot_id);

CREATE TABLE IF NOT EXISTS allocation_records (
	id          TEXT PRIMARY KEY,
	demand_id   TEXT NOT NULL,
	product_id  TEXT NOT NULL,
	location    TEXT NOT NULL,
	lot_id      TEXT NOT NULL DEFAULT '',
	quantity    NUMERIC NOT NULL CHECK (quantity > 0),
	package_id  TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS allocation_records_demand_idx
	ON allocation_records (demand_id, created_at);
`

// EnsureSchema creates the inventory and allocation tables when missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed upserts inventory records in one batch
func Seed(ctx context.Context, pool *pgxpool.Pool, records []*entities.InventoryRecord) error {
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO inventory_records
				(id, product_id, location, lot_id, quantity, reserved, in_date, package_id, owner_id)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				product_id = EXCLUDED.product_id,
				location   = EXCLUDED.location,
				lot_id     = EXCLUDED.lot_id,
				quantity   = EXCLUDED.quantity,
				reserved   = EXCLUDED.reserved,
				in_date    = EXCLUDED.in_date,
				package_id = EXCLUDED.package_id,
				owner_id   = EXCLUDED.owner_id`,
			r.ID, string(r.ProductID), r.Location, string(r.LotID),
			r.Quantity.String(), r.ReservedQuantity.String(), r.InDate,
			r.Provenance.PackageID, r.Provenance.OwnerID,
		)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed inventory: %w", err)
	}
	return nil
}

// Truncate removes every inventory and allocation row
func Truncate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `TRUNCATE inventory_records, allocation_records`); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
