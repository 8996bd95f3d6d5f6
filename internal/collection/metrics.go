package collection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded by cacheLookupsTotal.
const (
	lookupHit     = "hit"
	lookupPending = "pending"
	lookupMiss    = "miss"
	lookupFailed  = "failed"
)

// Prometheus metrics for the resolution cache.
var (
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omnistate_collection_cache_lookups_total",
		Help: "Resolution cache lookups by collection and result",
	}, []string{"collection", "result"})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omnistate_collection_resolutions_total",
		Help: "Completed resolutions by collection and outcome",
	}, []string{"collection", "outcome"})

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "omnistate_collection_resolve_duration_seconds",
		Help:    "Time from resolver invocation to merged result",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"collection"})

	cacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omnistate_collection_cache_evictions_total",
		Help: "Entries dropped by failure, expiry or invalidation",
	}, []string{"collection", "reason"})
)
