package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/garmentshop/catalog/internal/platform/cache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingCatalog records how often reads reach the underlying service.
type countingCatalog struct {
	Catalog
	gets  atomic.Int64
	lists atomic.Int64
	block chan struct{}
}

func (c *countingCatalog) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	c.gets.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return Product{}, ctx.Err()
		}
	}
	return c.Catalog.GetProduct(ctx, id)
}

func (c *countingCatalog) ListProducts(ctx context.Context, includeInactive bool, req PageRequest) (Page, error) {
	c.lists.Add(1)
	return c.Catalog.ListProducts(ctx, includeInactive, req)
}

// brokenBackend fails every call.
type brokenBackend struct{}

var errBackendDown = errors.New("backend down")

func (brokenBackend) Get(context.Context, string) ([]byte, error)   { return nil, errBackendDown }
func (brokenBackend) Set(context.Context, string, []byte) error     { return errBackendDown }
func (brokenBackend) Delete(context.Context, ...string) error       { return errBackendDown }
func (brokenBackend) DeletePrefix(context.Context, ...string) error { return errBackendDown }

// deleteFailingBackend serves reads and writes but fails deletes while
// failDeletes is set.
type deleteFailingBackend struct {
	*cache.MemoryBackend
	failDeletes atomic.Bool
}

func (b *deleteFailingBackend) Delete(ctx context.Context, keys ...string) error {
	if b.failDeletes.Load() {
		return errBackendDown
	}
	return b.MemoryBackend.Delete(ctx, keys...)
}

func (b *deleteFailingBackend) DeletePrefix(ctx context.Context, prefixes ...string) error {
	if b.failDeletes.Load() {
		return errBackendDown
	}
	return b.MemoryBackend.DeletePrefix(ctx, prefixes...)
}

type cacheFixture struct {
	cached  *CachedCatalog
	inner   *countingCatalog
	backend cache.Backend
	metrics *CacheMetrics
}

func newCacheFixture(t *testing.T, backend cache.Backend) cacheFixture {
	t.Helper()
	svc, _ := newTestService(t)
	inner := &countingCatalog{Catalog: svc}
	metrics, err := NewCacheMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return cacheFixture{
		cached:  NewCachedCatalog(inner, backend, quietLogger(), metrics),
		inner:   inner,
		backend: backend,
		metrics: metrics,
	}
}

func newRedisCacheBackend(t *testing.T) cache.Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisBackend(client, "catalog", time.Minute)
}

func TestCachedCatalogServesRepeatReadsFromCache(t *testing.T) {
	for name, backend := range map[string]func(*testing.T) cache.Backend{
		"memory": func(*testing.T) cache.Backend { return cache.NewMemoryBackend(0) },
		"redis":  newRedisCacheBackend,
	} {
		t.Run(name, func(t *testing.T) {
			fx := newCacheFixture(t, backend(t))
			ctx := context.Background()
			p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
			require.NoError(t, err)

			first, err := fx.cached.GetProduct(ctx, p.ID)
			require.NoError(t, err)
			second, err := fx.cached.GetProduct(ctx, p.ID)
			require.NoError(t, err)
			require.Equal(t, first.Price.String(), second.Price.String())
			require.Equal(t, first.SKU, second.SKU)
			require.EqualValues(t, 1, fx.inner.gets.Load())
			require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.hits.WithLabelValues("get_product")))

			_, err = fx.cached.ListProducts(ctx, false, PageRequest{})
			require.NoError(t, err)
			_, err = fx.cached.ListProducts(ctx, false, PageRequest{})
			require.NoError(t, err)
			require.EqualValues(t, 1, fx.inner.lists.Load())
		})
	}
}

func TestCachedCatalogGetAfterUpdateIsFresh(t *testing.T) {
	fx := newCacheFixture(t, newRedisCacheBackend(t))
	ctx := context.Background()
	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)

	_, err = fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	listed, err := fx.cached.ListProducts(ctx, false, PageRequest{})
	require.NoError(t, err)
	require.Equal(t, "Parka", listed.Content[0].Name)

	_, err = fx.cached.UpdateProduct(ctx, p.ID, sampleInput("Parka Deluxe", "Outerwear"), nil)
	require.NoError(t, err)

	got, err := fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Parka Deluxe", got.Name)
	require.Equal(t, p.Version+1, got.Version)

	listed, err = fx.cached.ListProducts(ctx, false, PageRequest{})
	require.NoError(t, err)
	require.Equal(t, "Parka Deluxe", listed.Content[0].Name)
}

func TestCachedCatalogDeleteAndViewInvalidateListings(t *testing.T) {
	fx := newCacheFixture(t, cache.NewMemoryBackend(0))
	ctx := context.Background()
	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)

	page, err := fx.cached.ListByCategory(ctx, "Outerwear", PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)

	_, err = fx.cached.IncrementViewCount(ctx, p.ID)
	require.NoError(t, err)
	page, err = fx.cached.ListByCategory(ctx, "Outerwear", PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Content[0].ViewCount)

	require.NoError(t, fx.cached.DeleteProduct(ctx, p.ID))
	page, err = fx.cached.ListByCategory(ctx, "Outerwear", PageRequest{})
	require.NoError(t, err)
	require.Empty(t, page.Content)
}

func TestCachedCatalogReplaceImagesInvalidatesOnlyProduct(t *testing.T) {
	backend := cache.NewMemoryBackend(0)
	fx := newCacheFixture(t, backend)
	ctx := context.Background()
	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)

	_, err = fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = fx.cached.ListProducts(ctx, false, PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, backend.Len())

	require.NoError(t, fx.cached.ReplaceImages(ctx, p.ID, []string{"https://cdn.example.com/parka.jpg"}))
	require.Equal(t, 1, backend.Len())

	_, err = backend.Get(ctx, ProductKey(p.ID))
	require.ErrorIs(t, err, cache.ErrMiss)
	_, err = backend.Get(ctx, ListKey(false, PageRequest{}))
	require.NoError(t, err)

	got, err := fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.example.com/parka.jpg"}, got.ImageURLs)
}

func TestCachedCatalogFallsBackWhenBackendFails(t *testing.T) {
	fx := newCacheFixture(t, brokenBackend{})
	ctx := context.Background()

	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.faults.WithLabelValues("create_product", "invalidate")))

	for i := 0; i < 2; i++ {
		got, err := fx.cached.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
	}
	require.EqualValues(t, 2, fx.inner.gets.Load())
	// the failed invalidation keeps reads off the backend; one purge is retried
	require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.faults.WithLabelValues("get_product", "purge")))
	require.Equal(t, 0.0, testutil.ToFloat64(fx.metrics.faults.WithLabelValues("get_product", "get")))

	_, err = fx.cached.UpdateProduct(ctx, p.ID, sampleInput("Parka II", "Outerwear"), nil)
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.faults.WithLabelValues("update_product", "invalidate")))
}

func TestCachedCatalogFailedInvalidationNeverServesStaleEntries(t *testing.T) {
	backend := &deleteFailingBackend{MemoryBackend: cache.NewMemoryBackend(0)}
	fx := newCacheFixture(t, backend)
	fx.cached.retryEvery = 0
	ctx := context.Background()
	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)
	_, err = fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, backend.Len())

	backend.failDeletes.Store(true)
	_, err = fx.cached.UpdateProduct(ctx, p.ID, sampleInput("Parka Deluxe", "Outerwear"), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := fx.cached.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, "Parka Deluxe", got.Name)
		require.Equal(t, p.Version+1, got.Version)
	}
	// nothing new is written while the old entry may still be present
	require.Equal(t, 1, backend.Len())

	backend.failDeletes.Store(false)
	gets := fx.inner.gets.Load()
	got, err := fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Parka Deluxe", got.Name)
	got, err = fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Parka Deluxe", got.Name)
	require.Equal(t, gets+1, fx.inner.gets.Load())
}

func TestCachedCatalogSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	fx := newCacheFixture(t, cache.NewMemoryBackend(0))
	p, err := fx.cached.CreateProduct(context.Background(), sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)

	fx.inner.block = make(chan struct{})
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := fx.cached.GetProduct(firstCtx, p.ID)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return fx.inner.gets.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		product Product
		err     error
	}
	second := make(chan result, 1)
	go func() {
		got, err := fx.cached.GetProduct(context.Background(), p.ID)
		second <- result{got, err}
	}()
	// let the second reader join the in-flight load
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(fx.inner.block)

	res := <-second
	require.NoError(t, res.err)
	require.Equal(t, p.ID, res.product.ID)
	require.EqualValues(t, 1, fx.inner.gets.Load())
}

func TestCachedCatalogDoesNotCacheErrors(t *testing.T) {
	backend := cache.NewMemoryBackend(0)
	fx := newCacheFixture(t, backend)
	ctx := context.Background()

	_, err := fx.cached.GetProduct(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
	_, err = fx.cached.ListProducts(ctx, false, PageRequest{Size: -1})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 0, backend.Len())
}

func TestCachedCatalogCoalescesConcurrentMisses(t *testing.T) {
	fx := newCacheFixture(t, cache.NewMemoryBackend(0))
	ctx := context.Background()
	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)

	fx.inner.block = make(chan struct{})
	const readers = 5
	var wg sync.WaitGroup
	results := make([]Product, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.cached.GetProduct(ctx, p.ID)
		}(i)
	}
	require.Eventually(t, func() bool { return fx.inner.gets.Load() == 1 }, time.Second, time.Millisecond)
	// let the readers queue on the in-flight load before releasing it
	time.Sleep(20 * time.Millisecond)
	close(fx.inner.block)
	wg.Wait()

	require.EqualValues(t, 1, fx.inner.gets.Load())
	for i, got := range results {
		require.NoError(t, errs[i])
		require.Equal(t, p.ID, got.ID)
	}
	results[0].Sizes[0] = "mutated"
	require.NotEqual(t, "mutated", results[1].Sizes[0])
}

func TestCachedCatalogPassesThroughWithoutBackend(t *testing.T) {
	fx := newCacheFixture(t, nil)
	ctx := context.Background()
	p, err := fx.cached.CreateProduct(ctx, sampleInput("Parka", "Outerwear"))
	require.NoError(t, err)
	_, err = fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = fx.cached.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, fx.inner.gets.Load())
	require.NoError(t, fx.cached.CheckStock(ctx, p.ID, 1))
}
