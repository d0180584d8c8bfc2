package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openapi_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// cacheMisses tracks cache misses, including expired-on-read entries
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openapi_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheEntries tracks the current number of stored entries
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openapi_cache_entries",
			Help: "Current number of cache entries",
		},
	)

	// cacheEvictions tracks entry removals by reason
	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openapi_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"reason"}, // "expired", "cleanup", "explicit"
	)
)
