package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"agrimarket.walletd/internal/domain/repositories"
)

// Backends holds the connections a driver may need
type Backends struct {
	Redis *redis.Client
	DB    *gorm.DB
}

// Open returns the KV store for driver. SQL stores are migrated before use.
func Open(ctx context.Context, driver string, b Backends) (repositories.KVStore, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("storage driver redis: no redis client")
		}
		return NewRedisStore(b.Redis), nil
	case "sqlite", "postgres":
		if b.DB == nil {
			return nil, fmt.Errorf("storage driver %s: no database", driver)
		}
		s := NewSQLStore(b.DB)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
