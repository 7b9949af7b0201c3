package memo

import (
	"sync"

	"github.com/23skdu/longbow-memo/internal/cache"
	"gonum.org/v1/gonum/mat"
)

// Option configures a Func.
type Option func(*config)

type config struct {
	name          string
	maxSize       int
	tolerance     float64
	distance      cache.DistanceFunc
	inputFactory  cache.Factory[mat.Matrix]
	outputFactory any
	lock          sync.Locker
}

func defaultConfig() config {
	return config{
		name:      "memo",
		maxSize:   cache.DefaultMaxSize,
		tolerance: cache.DefaultTolerance,
		distance:  cache.Euclidean,
	}
}

// WithName sets the label used for logs, metrics and the cache names.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithMaxSize sets the capacity of both caches.
func WithMaxSize(n int) Option {
	return func(c *config) {
		c.maxSize = n
	}
}

// WithTolerance sets the match tolerance of the default array caches.
func WithTolerance(tol float64) Option {
	return func(c *config) {
		c.tolerance = tol
	}
}

// WithDistance sets the metric of the default array caches.
func WithDistance(d cache.DistanceFunc) Option {
	return func(c *config) {
		c.distance = d
	}
}

// WithInputCache replaces the default input cache constructor.
func WithInputCache(f cache.Factory[mat.Matrix]) Option {
	return func(c *config) {
		c.inputFactory = f
	}
}

// WithOutputCache replaces the default output cache constructor. Its value
// type must match the output type of the wrapped function.
func WithOutputCache[O any](f cache.Factory[O]) Option {
	return func(c *config) {
		if f != nil {
			c.outputFactory = f
		}
	}
}

// WithLock makes every Call hold l across the lookup, the evaluation and
// the append, so a Func can be shared between goroutines.
func WithLock(l sync.Locker) Option {
	return func(c *config) {
		c.lock = l
	}
}

func (c config) arrayFactory() cache.Factory[mat.Matrix] {
	return cache.ArrayFactory(cache.WithDistance(c.distance), cache.WithTolerance(c.tolerance))
}
