package memo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memo_calls_total",
		Help: "Total number of calls to memoized functions",
	}, []string{"func"})

	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memo_hits_total",
		Help: "Total number of calls answered from the cache",
	}, []string{"func"})

	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memo_evaluations_total",
		Help: "Total number of actual evaluations of wrapped functions",
	}, []string{"func"})

	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memo_evaluation_duration_seconds",
		Help:    "Time spent evaluating wrapped functions on cache misses",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"func"})
)
