package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/garmentshop/catalog/internal/catalog"
	jobmetrics "github.com/garmentshop/catalog/internal/jobs"
)

const warmupJobName = "catalog_cache_warmup"

// CacheWarmupJob re-reads the first listing pages through the cached catalog
// so the next storefront request after an invalidation is a hit.
type CacheWarmupJob struct {
	catalog  catalog.Catalog
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
	pageSize int
	clock    func() time.Time
}

// NewCacheWarmupJob builds the warmup handler. pageSize is used when the task
// payload does not carry one.
func NewCacheWarmupJob(c catalog.Catalog, pageSize int, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = catalog.DefaultPageSize
	}
	return &CacheWarmupJob{catalog: c, logger: logger, metrics: metrics, pageSize: pageSize, clock: time.Now}
}

// Handle executes the asynq task.
func (j *CacheWarmupJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.catalog == nil {
		return errors.New("jobs: catalog warmup not configured")
	}
	var payload CacheWarmupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: decode warmup payload: %v", asynq.SkipRetry, err)
		}
	}
	tracker := j.metrics.Track(warmupJobName)
	warmed, err := j.Run(ctx, payload)
	j.metrics.AddItems(warmupJobName, warmed)
	return tracker.End(err)
}

// Run warms listing pages for both the storefront and the admin view. It
// returns how many pages were loaded.
func (j *CacheWarmupJob) Run(ctx context.Context, payload CacheWarmupPayload) (int, error) {
	size := payload.PageSize
	if size <= 0 {
		size = j.pageSize
	}
	if size > catalog.MaxPageSize {
		size = catalog.MaxPageSize
	}
	pages := payload.Pages
	if pages <= 0 {
		pages = 1
	}

	start := j.clock()
	warmed := 0
	for _, includeInactive := range []bool{false, true} {
		for page := 0; page < pages; page++ {
			req := catalog.PageRequest{Page: page, Size: size, SortKey: catalog.SortByID, SortDirection: catalog.SortDesc}
			result, err := j.catalog.ListProducts(ctx, includeInactive, req)
			if err != nil {
				return warmed, fmt.Errorf("warm listing page %d (include inactive %t): %w", page, includeInactive, err)
			}
			warmed++
			if result.Last {
				break
			}
		}
	}
	j.logger.Info("catalog cache warmed",
		slog.Int("pages", warmed),
		slog.Int("page_size", size),
		slog.Duration("duration", j.clock().Sub(start)))
	return warmed, nil
}
