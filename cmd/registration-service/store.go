package main

import (
	"context"
	"fmt"

	"ms-registration/internal/config"
	"ms-registration/internal/database/migrations"
	"ms-registration/internal/logger"
	"ms-registration/internal/store"
	"ms-registration/internal/store/db"
	redisstore "ms-registration/internal/store/redis"

	"github.com/go-redis/redis/v8"
)

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, c *config.Config, l *logger.Logger) (store.Store, func(), error) {
	switch c.Store.Backend {
	case "postgres":
		d, err := db.OpenPostgres(c.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		l.Info("DATABASE", "✅ PostgreSQL connection successful")
		if c.Store.AutoMigrate {
			// the runner shares the pool, so it is not closed here
			if err := migrations.NewRunner(d.Bun.DB, l).MigrateUp(); err != nil {
				d.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return d, func() { d.Close() }, nil

	case "sqlite":
		d, err := db.OpenSQLite(ctx, c.Store.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		l.Info("DATABASE", fmt.Sprintf("✅ SQLite opened at %s", c.Store.SQLiteDSN))
		return d, func() { d.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection error: %w", err)
		}
		l.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", c.Redis.Addr, c.Redis.DB))
		return redisstore.NewStore(client), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
}
