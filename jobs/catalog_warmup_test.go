package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garmentshop/catalog/internal/catalog"
	jobmetrics "github.com/garmentshop/catalog/internal/jobs"
	"github.com/garmentshop/catalog/internal/platform/cache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededCatalog(t *testing.T, backend cache.Backend, products int) catalog.Catalog {
	t.Helper()
	svc := catalog.NewService(catalog.NewMemoryStore())
	cached := catalog.NewCachedCatalog(svc, backend, quietLogger(), nil)
	for i := 0; i < products; i++ {
		_, err := cached.CreateProduct(context.Background(), catalog.ProductInput{
			Name:          "Tee",
			Price:         decimal.NewFromInt(20),
			StockQuantity: 1,
			Category:      "Tops",
			Brand:         "Acme",
			Gender:        catalog.GenderUnisex,
		})
		require.NoError(t, err)
	}
	return cached
}

func TestCacheWarmupPopulatesListingKeys(t *testing.T) {
	backend := cache.NewMemoryBackend(0)
	c := seededCatalog(t, backend, 3)
	require.Equal(t, 0, backend.Len())

	job := NewCacheWarmupJob(c, 2, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewCacheWarmupTask(CacheWarmupPayload{Pages: 5})
	require.NoError(t, err)
	require.Equal(t, TaskCatalogCacheWarmup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	// two pages of two for each visibility, stopping at the last page
	require.Equal(t, 4, backend.Len())
	for _, includeInactive := range []bool{false, true} {
		req := catalog.PageRequest{Page: 0, Size: 2, SortKey: catalog.SortByID, SortDirection: catalog.SortDesc}
		_, err := backend.Get(context.Background(), catalog.ListKey(includeInactive, req))
		require.NoError(t, err)
	}
}

func TestCacheWarmupDefaultsAndClamping(t *testing.T) {
	backend := cache.NewMemoryBackend(0)
	job := NewCacheWarmupJob(seededCatalog(t, backend, 1), 0, nil, nil)

	warmed, err := job.Run(context.Background(), CacheWarmupPayload{PageSize: catalog.MaxPageSize * 2})
	require.NoError(t, err)
	require.Equal(t, 2, warmed)

	req := catalog.PageRequest{Page: 0, Size: catalog.MaxPageSize, SortKey: catalog.SortByID, SortDirection: catalog.SortDesc}
	_, err = backend.Get(context.Background(), catalog.ListKey(false, req))
	require.NoError(t, err)
}

type failingCatalog struct {
	catalog.Catalog
}

func (failingCatalog) ListProducts(context.Context, bool, catalog.PageRequest) (catalog.Page, error) {
	return catalog.Page{}, catalog.ErrStoreUnavailable
}

func TestCacheWarmupReportsFailures(t *testing.T) {
	job := NewCacheWarmupJob(failingCatalog{}, 10, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskCatalogCacheWarmup, nil))
	require.ErrorIs(t, err, catalog.ErrStoreUnavailable)

	err = job.Handle(context.Background(), asynq.NewTask(TaskCatalogCacheWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var unset *CacheWarmupJob
	require.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskCatalogCacheWarmup, nil)))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealth(t *testing.T) {
	cases := map[string]struct {
		inspector QueueInspector
		status    int
		pending   int
	}{
		"no inspector":  {inspector: nil, status: http.StatusOK},
		"queue info":    {inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Timestamp: time.Now()}}, status: http.StatusOK, pending: 4},
		"queue missing": {inspector: stubInspector{err: asynq.ErrQueueNotFound}, status: http.StatusOK},
		"redis down":    {inspector: stubInspector{err: errors.New("dial tcp: refused")}, status: http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, quietLogger()).MountRoutes)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, QueueDefault, body.Queue)
			require.Equal(t, tc.pending, body.Pending)
		})
	}
}
