package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"pix-checkout/internal/config"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/db/boltdb"
	pg "pix-checkout/internal/infra/db/postgres"
)

// stores holds the repositories for the configured driver plus its teardown.
type stores struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	pool    *pgxpool.Pool // nil with the bolt driver
	close   func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "bolt":
		db, err := boltdb.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("bolt: %w", err)
		}
		logger.Info().Str("path", cfg.Storage.BoltPath).Msg("using bolt storage")
		return &stores{
			orders:  db.Orders(),
			catalog: db.Catalog(),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error().Err(err).Msg("close bolt store")
				}
			},
		}, nil
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := pg.Migrate(migrateCtx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("using postgres storage")
		return &stores{
			orders:  pg.NewOrderRepo(pool),
			catalog: pg.NewCatalogRepo(pool),
			pool:    pool,
			close:   pool.Close,
		}, nil
	}
}
