package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogCacheWarmup repopulates the hottest listing pages.
	TaskCatalogCacheWarmup = "catalog:cache_warmup"
)

// CacheWarmupPayload configures one warmup run. Zero values fall back to the
// job defaults.
type CacheWarmupPayload struct {
	PageSize int `json:"page_size"`
	Pages    int `json:"pages"`
}

// NewCacheWarmupTask constructs a warmup task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogCacheWarmup, data), nil
}
