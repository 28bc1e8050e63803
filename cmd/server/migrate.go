package main

import (
	"context"
	"fmt"

	"bakery-pos/config"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"go.uber.org/zap"
)

func runMigrate(ctx context.Context, seed bool) error {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.NewPostgresStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	logger.Info("Migrations applied", zap.Strings("files", applied))

	if !seed {
		return nil
	}

	catalog, err := store.LoadCatalog(cfg.Database.SeedFile)
	if err != nil {
		return err
	}
	seeded, err := db.Seed(ctx, catalog)
	if err != nil {
		return err
	}
	if seeded {
		logger.Info("Catalog seeded",
			zap.Int("categories", len(catalog.Categories)),
			zap.Int("products", len(catalog.Products)))
	} else {
		logger.Info("Catalog already populated, seed skipped")
	}
	return nil
}
