package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/throttleq/internal/config"
	"github.com/phrazzld/throttleq/internal/platform/postgres"
)

// setupAppDatabase connects to the configured database.
func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	return postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
}
