package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics observes the cache coordinator. A nil *CacheMetrics records
// nothing.
type CacheMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	faults        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	loadDuration  *prometheus.HistogramVec
}

// NewCacheMetrics registers the cache collectors on reg, reusing collectors
// that are already registered under the same names.
func NewCacheMetrics(reg prometheus.Registerer) (*CacheMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &CacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Number of catalog reads served from cache.",
		}, []string{"operation"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Number of catalog reads that fell through to the store.",
		}, []string{"operation"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Number of cache backend failures, by operation and stage.",
		}, []string{"operation", "stage"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "Number of cache invalidations, by scope.",
		}, []string{"scope"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_cache_load_duration_seconds",
			Help:    "Duration of store loads performed on cache misses.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	var err error
	if m.hits, err = registerCounter(reg, m.hits); err != nil {
		return nil, err
	}
	if m.misses, err = registerCounter(reg, m.misses); err != nil {
		return nil, err
	}
	if m.faults, err = registerCounter(reg, m.faults); err != nil {
		return nil, err
	}
	if m.invalidations, err = registerCounter(reg, m.invalidations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.loadDuration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("catalog cache metrics: unexpected collector type %T", already.ExistingCollector)
		}
		m.loadDuration = existing
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("catalog cache metrics: unexpected collector type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *CacheMetrics) hit(op string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(op).Inc()
}

func (m *CacheMetrics) miss(op string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(op).Inc()
}

func (m *CacheMetrics) fault(op, stage string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(op, stage).Inc()
}

func (m *CacheMetrics) invalidated(scope string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(scope).Inc()
}

func (m *CacheMetrics) observeLoad(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(op).Observe(d.Seconds())
}
