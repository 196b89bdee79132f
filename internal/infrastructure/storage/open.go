package storage

import (
	"context"
	"fmt"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/ports"
)

// Open builds the record store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (ports.Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLite.Path)
	case config.DriverRedis:
		return OpenRedis(ctx, cfg.Redis)
	case config.DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
