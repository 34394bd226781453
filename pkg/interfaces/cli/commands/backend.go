package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/domain/repositories"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/wholelot/pkg/infrastructure/repositories/redis"
)

// backend is the inventory and allocation storage selected by -store
type backend struct {
	Inventory   repositories.InventoryRepository
	Allocations repositories.AllocationRepository
	closers     []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the configured store and seeds it with the scenario inventory
func openBackend(
	ctx context.Context,
	config Config,
	logger *slog.Logger,
	records []*entities.InventoryRecord,
) (*backend, error) {
	switch config.Store {
	case StorePostgres:
		pool, err := pgxpool.New(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b := &backend{
			Inventory:   postgres.NewInventoryRepository(logger, pool),
			Allocations: postgres.NewAllocationRepository(logger, pool),
			closers:     []func(){pool.Close},
		}
		if err := pool.Ping(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			b.Close()
			return nil, err
		}
		if config.Reset {
			if err := postgres.Truncate(ctx, pool); err != nil {
				b.Close()
				return nil, err
			}
		}
		if err := postgres.Seed(ctx, pool, records); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil

	case StoreRedis:
		opts, err := goredis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		b := &backend{
			Allocations: memory.NewAllocationRepository(),
			closers:     []func(){func() { _ = client.Close() }},
		}
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		inventory := redis.NewInventoryRepository(client, redis.WithLogger(logger))
		if err := inventory.Seed(ctx, records); err != nil {
			b.Close()
			return nil, err
		}
		b.Inventory = inventory
		return b, nil

	default:
		inventory := memory.NewInventoryRepository()
		if err := inventory.LoadRecords(records); err != nil {
			return nil, fmt.Errorf("failed to load inventory: %w", err)
		}
		return &backend{
			Inventory:   inventory,
			Allocations: memory.NewAllocationRepository(),
		}, nil
	}
}
