package cache

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the distance below which two arrays are treated as identical.
const DefaultTolerance = 1e-16

// ArrayOption configures an ArrayStore.
type ArrayOption func(*arrayConfig)

type arrayConfig struct {
	distance  DistanceFunc
	tolerance float64
}

// WithDistance sets the metric used by IndexOf. Nil keeps Euclidean.
func WithDistance(d DistanceFunc) ArrayOption {
	return func(c *arrayConfig) {
		if d != nil {
			c.distance = d
		}
	}
}

// WithTolerance sets the largest distance at which two arrays match.
func WithTolerance(tol float64) ArrayOption {
	return func(c *arrayConfig) {
		c.tolerance = tol
	}
}

// ArrayStore holds numeric arrays and matches them approximately.
// Values are copied on the way in and on the way out.
type ArrayStore struct {
	entries   *ring[*mat.Dense]
	distance  DistanceFunc
	tolerance float64
}

// NewArrayStore creates a store for up to capacity arrays.
func NewArrayStore(capacity int, opts ...ArrayOption) (*ArrayStore, error) {
	cfg := arrayConfig{
		distance:  Euclidean,
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tolerance < 0 || math.IsNaN(cfg.tolerance) {
		return nil, fmt.Errorf("tolerance must be >= 0, got %g: %w", cfg.tolerance, ErrInvalidConfig)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d: %w", capacity, ErrInvalidConfig)
	}
	return &ArrayStore{
		entries:   newRing[*mat.Dense](capacity),
		distance:  cfg.distance,
		tolerance: cfg.tolerance,
	}, nil
}

// Tolerance returns the configured match tolerance.
func (s *ArrayStore) Tolerance() float64 {
	return s.tolerance
}

func (s *ArrayStore) Len() int {
	return s.entries.len()
}

func (s *ArrayStore) DropOldest() {
	s.entries.popFront()
}

func (s *ArrayStore) Push(v mat.Matrix) {
	s.entries.push(mat.DenseCopyOf(v))
}

func (s *ArrayStore) At(i int) mat.Matrix {
	return mat.DenseCopyOf(s.entries.at(i))
}

// IndexOf scans from the newest entry to the oldest and returns the first
// index whose distance to v is within tolerance.
func (s *ArrayStore) IndexOf(v mat.Matrix) int {
	for i := s.entries.len() - 1; i >= 0; i-- {
		if s.distance(v, s.entries.at(i)) <= s.tolerance {
			return i
		}
	}
	return NotFound
}

// NewArray creates a bounded cache of numeric arrays with tolerance-based lookups.
func NewArray(maxSize int, name string, opts ...ArrayOption) (*Bounded[mat.Matrix], error) {
	if maxSize <= 0 {
		return NewBounded[mat.Matrix](maxSize, name, nil)
	}
	store, err := NewArrayStore(maxSize, opts...)
	if err != nil {
		return nil, fmt.Errorf("cache %q: %w", name, err)
	}
	return NewBounded[mat.Matrix](maxSize, name, store)
}

// ArrayFactory returns a Factory producing array caches configured with opts.
func ArrayFactory(opts ...ArrayOption) Factory[mat.Matrix] {
	return func(maxSize int, name string) (Cache[mat.Matrix], error) {
		c, err := NewArray(maxSize, name, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
