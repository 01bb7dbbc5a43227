package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/terminology"
)

// OpenStore creates and initializes the store selected by cfg. The returned
// close function releases the underlying connection.
func OpenStore(ctx context.Context, cfg StoreConfig) (terminology.Store, func() error, error) {
	var (
		store   terminology.Store
		closeFn = func() error { return nil }
	)

	switch cfg.Driver {
	case "memory":
		store = terminology.NewMemoryStore()
	case "sqlite":
		s := terminology.NewSQLiteStore(terminology.SQLiteConfig{
			Path:        cfg.SQLitePath,
			BusyTimeout: cfg.SQLiteTimeout,
		})
		store, closeFn = s, s.Close
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store, closeFn = terminology.NewRedisStore(client, cfg.RedisKey), client.Close
	default:
		return nil, nil, fmt.Errorf("config: unknown store driver %q", cfg.Driver)
	}

	if cfg.CacheSize > 0 {
		store = terminology.NewCachedStore(store, cfg.CacheSize)
	}

	if err := store.Init(ctx); err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("config: init %s store: %w", cfg.Driver, err)
	}

	if cfg.Seed {
		n, err := store.Count(ctx)
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("config: count %s store: %w", cfg.Driver, err)
		}
		if n == 0 {
			if _, err := store.BulkReplace(ctx, terminology.CommonProcedures()); err != nil {
				_ = closeFn()
				return nil, nil, fmt.Errorf("config: seed %s store: %w", cfg.Driver, err)
			}
			logger.Info("reference table seeded with common procedures", "driver", cfg.Driver)
		}
	}

	logger.Debug("reference store ready", "driver", cfg.Driver, "cache", cfg.CacheSize)
	return store, closeFn, nil
}
