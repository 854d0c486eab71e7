package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/garmentshop/catalog/internal/catalog"
	"github.com/garmentshop/catalog/internal/platform/cache"
	"github.com/garmentshop/catalog/internal/platform/db"
)

const cacheNamespace = "catalog"

// Components holds the assembled catalog and the resources backing it.
type Components struct {
	Catalog catalog.Catalog
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Backend cache.Backend

	closers []func()
}

// BuildCatalog connects the configured store and cache and wraps the service
// with caching and logging. Callers must Close the result.
func BuildCatalog(ctx context.Context, cfg *Config, logger *slog.Logger, reg prometheus.Registerer) (*Components, error) {
	c := &Components{}

	var store catalog.Store
	switch cfg.StoreBackend {
	case StoreMemory:
		logger.Warn("using in-memory product store; data is lost on restart")
		store = catalog.NewMemoryStore()
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: 30 * time.Minute})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		store = catalog.NewRepository(pool)
	}

	switch cfg.CacheBackend {
	case CacheRedis:
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			// reads fall through to the store until redis answers
			logger.Warn("redis unavailable at startup", slog.Any("error", err))
			client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		}
		c.Redis = client
		c.closers = append(c.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		c.Backend = cache.NewRedisBackend(client, cacheNamespace, cfg.CacheTTL)
	case CacheMemory:
		c.Backend = cache.NewMemoryBackend(cfg.CacheTTL)
	}

	metrics, err := catalog.NewCacheMetrics(reg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("register cache metrics: %w", err)
	}

	svc := catalog.NewService(store)
	c.Catalog = catalog.WithLogging(catalog.NewCachedCatalog(svc, c.Backend, logger, metrics), logger)
	return c, nil
}

// Health pings the store. The cache is best effort and never fails readiness.
func (c *Components) Health(r *http.Request) error {
	if c == nil || c.Pool == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := c.Pool.Ping(ctx); err != nil {
		return errors.Join(catalog.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (c *Components) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
