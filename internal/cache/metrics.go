package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memo_cache_evictions_total",
		Help: "Total number of entries evicted from bounded caches",
	}, []string{"cache"})

	cacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "memo_cache_entries",
		Help: "Current number of entries held by bounded caches",
	}, []string{"cache"})
)
