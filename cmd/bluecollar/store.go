package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/bluecollar-client/credentials"
	"github.com/jrsteele09/bluecollar-client/credentials/memory"
	"github.com/jrsteele09/bluecollar-client/credentials/redis"
	"github.com/jrsteele09/bluecollar-client/credentials/sqlite"
	"github.com/jrsteele09/bluecollar-client/internal/config"
)

// openStore opens the configured credential store. The returned func
// releases it.
func openStore(ctx context.Context, cfg config.StoreConfig) (credentials.Store, func(), error) {
	switch cfg.GetStoreDriver() {
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.GetStorePath())
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StoreRedis:
		store, err := redis.Open(ctx, redis.Config{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
			Prefix:   cfg.GetStorePrefix(),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential store %q", cfg.GetStoreDriver())
	}
}
