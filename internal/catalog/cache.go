package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/garmentshop/catalog/internal/platform/cache"
)

const (
	invalidationTimeout = 2 * time.Second
	// loadTimeout bounds a shared load once it is detached from the caller
	// that started it.
	loadTimeout = 30 * time.Second
	// purgeRetryInterval spaces out attempts to clear entries left behind by
	// a failed invalidation.
	purgeRetryInterval = time.Second
)

// CachedCatalog is a read-through cache in front of another Catalog.
//
// Reads are keyed by ProductKey, ListKey, CategoryKey, BrandKey and SearchKey.
// Every successful mutation except ReplaceImages drops all product and listing
// entries before returning; ReplaceImages drops only the product's own entry.
// Backend failures are logged and the call falls through to next. When an
// invalidation fails the backend may still hold entries older than the write,
// so the coordinator stops using it until a full purge succeeds.
type CachedCatalog struct {
	next    Catalog
	backend cache.Backend
	logger  *slog.Logger
	metrics *CacheMetrics

	group singleflight.Group
	// generation advances on every invalidation. Loads started under an older
	// generation do not populate the cache and are not joined by newer reads.
	generation atomic.Uint64
	// stale counts failed invalidations not yet covered by a successful purge.
	stale      atomic.Uint64
	lastPurge  atomic.Int64
	retryEvery time.Duration
}

var _ Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps next. A nil backend disables caching.
func NewCachedCatalog(next Catalog, backend cache.Backend, logger *slog.Logger, metrics *CacheMetrics) *CachedCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{next: next, backend: backend, logger: logger, metrics: metrics, retryEvery: purgeRetryInterval}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return readThrough(ctx, c, "get_product", ProductKey(id), func(ctx context.Context) (Product, error) {
		return c.next.GetProduct(ctx, id)
	})
}

func (c *CachedCatalog) ListProducts(ctx context.Context, includeInactive bool, req PageRequest) (Page, error) {
	return readThrough(ctx, c, "list_products", ListKey(includeInactive, req), func(ctx context.Context) (Page, error) {
		return c.next.ListProducts(ctx, includeInactive, req)
	})
}

func (c *CachedCatalog) SearchProducts(ctx context.Context, f Filter, req PageRequest) (Page, error) {
	return readThrough(ctx, c, "search_products", SearchKey(f, req), func(ctx context.Context) (Page, error) {
		return c.next.SearchProducts(ctx, f, req)
	})
}

func (c *CachedCatalog) ListByCategory(ctx context.Context, category string, req PageRequest) (Page, error) {
	return readThrough(ctx, c, "list_by_category", CategoryKey(category, req), func(ctx context.Context) (Page, error) {
		return c.next.ListByCategory(ctx, category, req)
	})
}

func (c *CachedCatalog) ListByBrand(ctx context.Context, brand string, req PageRequest) (Page, error) {
	return readThrough(ctx, c, "list_by_brand", BrandKey(brand, req), func(ctx context.Context) (Page, error) {
		return c.next.ListByBrand(ctx, brand, req)
	})
}

func (c *CachedCatalog) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	p, err := c.next.CreateProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	c.invalidateAll(ctx, "create_product")
	return p, nil
}

func (c *CachedCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput, expectedVersion *int64) (Product, error) {
	p, err := c.next.UpdateProduct(ctx, id, in, expectedVersion)
	if err != nil {
		return Product{}, err
	}
	c.invalidateAll(ctx, "update_product")
	return p, nil
}

func (c *CachedCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := c.next.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.invalidateAll(ctx, "delete_product")
	return nil
}

func (c *CachedCatalog) IncrementViewCount(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := c.next.IncrementViewCount(ctx, id)
	if err != nil {
		return Product{}, err
	}
	c.invalidateAll(ctx, "increment_view_count")
	return p, nil
}

// ReplaceImages only drops the single-product entry. Listings may show the old
// image set until their next broad invalidation or expiry.
func (c *CachedCatalog) ReplaceImages(ctx context.Context, id uuid.UUID, urls []string) error {
	if err := c.next.ReplaceImages(ctx, id, urls); err != nil {
		return err
	}
	c.invalidateKeys(ctx, "replace_images", ProductKey(id))
	return nil
}

func (c *CachedCatalog) CheckStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return c.next.CheckStock(ctx, id, quantity)
}

func (c *CachedCatalog) ProductExists(ctx context.Context, id uuid.UUID) error {
	return c.next.ProductExists(ctx, id)
}

// readThrough serves key from the backend or loads it through next. Concurrent
// misses for the same key and generation share one load. Each caller decodes
// its own copy of the encoded result.
func readThrough[T any](ctx context.Context, c *CachedCatalog, op, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	if c.backend == nil {
		return load(ctx)
	}
	if !c.usable(ctx, op) {
		c.metrics.miss(op)
		return load(ctx)
	}

	payload, err := c.backend.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(payload, &out); err == nil {
			c.metrics.hit(op)
			return out, nil
		}
		c.fault(ctx, op, "decode", key, err)
		out = *new(T)
	case errors.Is(err, cache.ErrMiss):
	default:
		c.fault(ctx, op, "get", key, err)
	}
	c.metrics.miss(op)

	gen := c.generation.Load()
	flightKey := key + "#" + strconv.FormatUint(gen, 10)
	resultCh := c.group.DoChan(flightKey, func() (any, error) {
		// callers joined to this flight outlive the one that started it
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		start := time.Now()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.metrics.observeLoad(op, time.Since(start))
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() == gen && c.stale.Load() == 0 {
			if err := c.backend.Set(loadCtx, key, encoded); err != nil {
				c.fault(ctx, op, "set", key, err)
			}
		}
		return encoded, nil
	})

	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return out, res.Err
		}
		if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
			return out, err
		}
		return out, nil
	}
}

// invalidateAll drops every product and listing entry. It runs detached from
// the caller's cancellation because the write it follows has already landed.
func (c *CachedCatalog) invalidateAll(ctx context.Context, op string) {
	c.generation.Add(1)
	c.metrics.invalidated("all")
	if c.backend == nil {
		return
	}
	pending := c.stale.Load()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidationTimeout)
	defer cancel()
	if err := c.backend.DeletePrefix(ctx, productPrefix, productsPrefix); err != nil {
		c.stale.Add(1)
		c.fault(ctx, op, "invalidate", productPrefix+"*,"+productsPrefix+"*", err)
		return
	}
	c.stale.CompareAndSwap(pending, 0)
}

func (c *CachedCatalog) invalidateKeys(ctx context.Context, op string, keys ...string) {
	c.generation.Add(1)
	c.metrics.invalidated("key")
	if c.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidationTimeout)
	defer cancel()
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.stale.Add(1)
		c.fault(ctx, op, "invalidate", keys[0], err)
	}
}

// usable reports whether reads may use the backend. After a failed
// invalidation it retries a full purge at most once per retryEvery and keeps
// bypassing the backend until one succeeds.
func (c *CachedCatalog) usable(ctx context.Context, op string) bool {
	pending := c.stale.Load()
	if pending == 0 {
		return true
	}
	now := time.Now().UnixNano()
	last := c.lastPurge.Load()
	if now-last < int64(c.retryEvery) || !c.lastPurge.CompareAndSwap(last, now) {
		return false
	}
	purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidationTimeout)
	defer cancel()
	if err := c.backend.DeletePrefix(purgeCtx, productPrefix, productsPrefix); err != nil {
		c.fault(ctx, op, "purge", productPrefix+"*,"+productsPrefix+"*", err)
		return false
	}
	c.generation.Add(1)
	if !c.stale.CompareAndSwap(pending, 0) {
		// another invalidation failed while purging; try again later
		return false
	}
	c.logger.InfoContext(ctx, "catalog cache purged after failed invalidation", slog.String("operation", op))
	return true
}

func (c *CachedCatalog) fault(ctx context.Context, op, stage, key string, err error) {
	c.metrics.fault(op, stage)
	c.logger.WarnContext(ctx, "catalog cache unavailable, using store",
		slog.String("operation", op),
		slog.String("stage", stage),
		slog.String("key", key),
		slog.Any("error", err),
	)
}
