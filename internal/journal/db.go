package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/brainoverflow/pkg/config"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MinConns = cfg.MinConnections
	poolConfig.MaxConnIdleTime = cfg.MaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := NewMigrationManager(pool, log).RunMigrations(); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Connected to journal database",
		logger.IntField("max_connections", int(cfg.MaxConnections)))
	return pool, nil
}
