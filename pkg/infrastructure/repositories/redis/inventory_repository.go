package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
	"github.com/vsinha/wholelot/pkg/domain/services"
)

const (
	defaultKeyPrefix   = "wholelot"
	defaultMaxAttempts = 16

	fieldProduct  = "product"
	fieldLocation = "location"
	fieldLot      = "lot"
	fieldQuantity = "quantity"
	fieldReserved = "reserved"
	fieldInDate   = "in_date"
	fieldPackage  = "package"
	fieldOwner    = "owner"
)

// ErrClaimContention is returned when a claim keeps losing optimistic
// transactions to concurrent writers
var ErrClaimContention = errors.New("claim retries exhausted")

// InventoryRepository stores inventory records as Redis hashes.
//
// Keys:
//
//	{prefix}:record:{id}                          hash of one record
//	{prefix}:scope:{product}|{location}           set of record ids
//	{prefix}:lot:{product}|{location}|{lot}       set of record ids
//
// A claim WATCHes the lot's record hashes and writes the new reserved
// quantities in a MULTI block, retrying when another writer got there first.
type InventoryRepository struct {
	client      redis.UniversalClient
	log         *slog.Logger
	prefix      string
	maxAttempts int
}

// Option configures an InventoryRepository
type Option func(*InventoryRepository)

// WithKeyPrefix sets the namespace of every key
func WithKeyPrefix(prefix string) Option {
	return func(r *InventoryRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithMaxAttempts bounds the optimistic retries of a single claim
func WithMaxAttempts(n int) Option {
	return func(r *InventoryRepository) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(r *InventoryRepository) {
		if log != nil {
			r.log = log
		}
	}
}

// NewInventoryRepository creates a Redis-backed inventory repository
func NewInventoryRepository(client redis.UniversalClient, opts ...Option) *InventoryRepository {
	r := &InventoryRepository{
		client:      client,
		log:         slog.Default(),
		prefix:      defaultKeyPrefix,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

func (r *InventoryRepository) recordKey(id string) string {
	return r.prefix + ":record:" + id
}

func (r *InventoryRepository) scopeKey(productID entities.ProductID, location string) string {
	return fmt.Sprintf("%s:scope:%s|%s", r.prefix, productID, location)
}

func (r *InventoryRepository) lotKey(productID entities.ProductID, location string, lotID entities.LotID) string {
	return fmt.Sprintf("%s:lot:%s|%s|%s", r.prefix, productID, location, lotID)
}

// Seed writes the records and their index sets in one transaction
func (r *InventoryRepository) Seed(ctx context.Context, records []*entities.InventoryRecord) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, record := range records {
			pipe.HSet(ctx, r.recordKey(record.ID), encodeRecord(*record))
			pipe.SAdd(ctx, r.scopeKey(record.ProductID, record.Location), record.ID)
			pipe.SAdd(ctx, r.lotKey(record.ProductID, record.Location, record.LotID), record.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed inventory: %w", err)
	}
	return nil
}

// FetchRecords returns the product's records at the location in FIFO order
func (r *InventoryRepository) FetchRecords(
	ctx context.Context,
	productID entities.ProductID,
	location string,
) ([]entities.InventoryRecord, error) {
	ids, err := r.client.SMembers(ctx, r.scopeKey(productID, location)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records of %s at %s: %w", productID, location, err)
	}

	records, err := r.readRecords(ctx, r.client, ids)
	if err != nil {
		return nil, err
	}
	services.SortRecordsFIFO(records)
	return records, nil
}

// Claim reserves up to requested units of the lot with optimistic locking
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

	ids, err := r.client.SMembers(ctx, r.lotKey(productID, location, lotID)).Result()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list records of lot %s: %w", lotID, err)
	}
	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}

	var claimed decimal.Decimal
	txf := func(tx *redis.Tx) error {
		records, err := r.readRecords(ctx, tx, ids)
		if err != nil {
			return err
		}
		services.SortRecordsFIFO(records)

		claimed = decimal.Zero
		remaining := requested
		updates := make(map[string]decimal.Decimal)
		for _, record := range records {
			if !remaining.IsPositive() {
				break
			}
			available := record.Available()
			if !available.IsPositive() {
				continue
			}
			take := decimal.Min(available, remaining)
			updates[record.ID] = record.ReservedQuantity.Add(take)
			claimed = claimed.Add(take)
			remaining = remaining.Sub(take)
		}
		if len(updates) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for id, reserved := range updates {
				pipe.HSet(ctx, r.recordKey(id), fieldReserved, reserved.String())
			}
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, keys...)
		if err == nil {
			return claimed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return decimal.Zero, fmt.Errorf("failed to claim lot %s: %w", lotID, err)
		}
		r.log.Debug("claim lost optimistic race, retrying",
			slog.String("lot", string(lotID)),
			slog.Int("attempt", attempt))
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}
	}
	return decimal.Zero, fmt.Errorf("lot %s: %w", lotID, ErrClaimContention)
}

// LotProvenance returns the provenance of the lot's first record in FIFO order
func (r *InventoryRepository) LotProvenance(
	ctx context.Context,
	productID entities.ProductID,
	location string,
	lotID entities.LotID,
) (entities.Provenance, bool, error) {
	ids, err := r.client.SMembers(ctx, r.lotKey(productID, location, lotID)).Result()
	if err != nil {
		return entities.Provenance{}, false, fmt.Errorf("failed to list records of lot %s: %w", lotID, err)
	}
	records, err := r.readRecords(ctx, r.client, ids)
	if err != nil {
		return entities.Provenance{}, false, err
	}
	if len(records) == 0 {
		return entities.Provenance{}, false, nil
	}
	services.SortRecordsFIFO(records)
	return records[0].Provenance, true, nil
}

func (r *InventoryRepository) readRecords(ctx context.Context, c redis.Cmdable, ids []string) ([]entities.InventoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.recordKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]entities.InventoryRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", ids[i], err)
		}
		if len(fields) == 0 {
			continue
		}
		record, err := decodeRecord(ids[i], fields)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func encodeRecord(record entities.InventoryRecord) map[string]interface{} {
	inDate := ""
	if record.InDate != nil {
		inDate = record.InDate.UTC().Format(time.RFC3339Nano)
	}
	return map[string]interface{}{
		fieldProduct:  string(record.ProductID),
		fieldLocation: record.Location,
		fieldLot:      string(record.LotID),
		fieldQuantity: record.Quantity.String(),
		fieldReserved: record.ReservedQuantity.String(),
		fieldInDate:   inDate,
		fieldPackage:  record.Provenance.PackageID,
		fieldOwner:    record.Provenance.OwnerID,
	}
}

func decodeRecord(id string, fields map[string]string) (entities.InventoryRecord, error) {
	quantity, err := decimal.NewFromString(fields[fieldQuantity])
	if err != nil {
		return entities.InventoryRecord{}, fmt.Errorf("record %s quantity: %w", id, err)
	}
	reserved, err := decimal.NewFromString(fields[fieldReserved])
	if err != nil {
		return entities.InventoryRecord{}, fmt.Errorf("record %s reserved: %w", id, err)
	}

	var inDate *time.Time
	if raw := fields[fieldInDate]; raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return entities.InventoryRecord{}, fmt.Errorf("record %s in_date: %w", id, err)
		}
		inDate = &parsed
	}

	return entities.InventoryRecord{
		ID:               id,
		ProductID:        entities.ProductID(fields[fieldProduct]),
		Location:         fields[fieldLocation],
		LotID:            entities.LotID(fields[fieldLot]),
		Quantity:         quantity,
		ReservedQuantity: reserved,
		InDate:           inDate,
		Provenance: entities.Provenance{
			PackageID: fields[fieldPackage],
			OwnerID:   fields[fieldOwner],
		},
	}, nil
}
