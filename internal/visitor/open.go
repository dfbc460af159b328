package visitor

import (
	"context"
	"fmt"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
)

// Open builds the store named by cfg.VisitorStore.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.VisitorStore {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("visitor: REDIS_ADDR is required for the redis store")
		}
		return NewRedisStoreFromAddr(connectCtx, cfg.RedisAddr, cfg.RedisPassword)
	case "sqlite":
		return NewSQLiteStore(connectCtx, cfg.SQLitePath)
	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("visitor: MYSQL_DSN is required for the mysql store")
		}
		return NewMySQLStore(connectCtx, cfg.MySQLDSN)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("visitor: DATABASE_URL is required for the postgres store")
		}
		return NewPostgresStore(connectCtx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("visitor: unknown store %q", cfg.VisitorStore)
	}
}
