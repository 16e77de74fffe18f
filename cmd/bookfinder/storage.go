package main

import (
	"context"
	"fmt"
	"time"

	"bookfinder/internal/config"
	"bookfinder/internal/favorites"
	"bookfinder/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openStorage builds the favorites backend named by cfg.Storage. The returned
// func releases its connections.
func openStorage(ctx context.Context, cfg config.Client) (favorites.Storage, func(), error) {
	switch cfg.Storage {
	case "", "file":
		return favorites.NewFileStorage(cfg.StorageDir), func() {}, nil
	case "redis":
		s := favorites.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, favorites.DefaultRedisPrefix)
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("create db pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database (%s): %w", redactDSN(cfg.DatabaseDSN), err)
		}
		logging.Debug().Msg("database connection OK")
		return favorites.NewPostgresStorage(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
