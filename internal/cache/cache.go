package cache

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// NotFound is returned by IndexOf when no stored value matches.
const NotFound = -1

// DefaultMaxSize is the capacity used when callers do not pick one.
const DefaultMaxSize = 256

var (
	// ErrInvalidConfig is returned by constructors given a bad capacity, tolerance or store.
	ErrInvalidConfig = errors.New("invalid cache configuration")
	// ErrOutOfRange is returned by ValueAt for an index outside [0, Size()).
	ErrOutOfRange = errors.New("cache index out of range")
)

// Cache defines the capability set shared by every bounded cache variant.
type Cache[T any] interface {
	// Name returns the diagnostic label of the cache.
	Name() string
	// Capacity returns the maximum number of entries.
	Capacity() int
	// Size returns the number of entries currently stored.
	Size() int
	// IsEmpty reports whether Size() == 0.
	IsEmpty() bool
	// Append stores v as the newest entry, evicting the oldest one first when full.
	Append(v T)
	// EvictOldest drops the entry at index 0. It reports false on an empty cache.
	EvictOldest() bool
	// IndexOf returns the index of a stored value matching v, or NotFound.
	IndexOf(v T) int
	// ValueAt returns the value stored at index i (0 is the oldest).
	ValueAt(i int) (T, error)
}

// Factory builds a cache of the given capacity and name.
type Factory[T any] func(maxSize int, name string) (Cache[T], error)

// Store is the set of storage hooks a Bounded cache is built on.
// Implementations may assume Push is never called when Len() equals the
// capacity they were created with, and DropOldest is never called on an
// empty store.
type Store[T any] interface {
	Len() int
	DropOldest()
	Push(v T)
	IndexOf(v T) int
	At(i int) T
}

// Bounded implements the FIFO template shared by all variants on top of a Store.
type Bounded[T any] struct {
	name    string
	maxSize int
	store   Store[T]
}

// ensure interface compliance
var _ Cache[int] = (*Bounded[int])(nil)

// NewBounded wraps store in a FIFO cache holding at most maxSize entries.
func NewBounded[T any](maxSize int, name string, store Store[T]) (*Bounded[T], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache %q: max size must be positive, got %d: %w", name, maxSize, ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("cache %q: nil store: %w", name, ErrInvalidConfig)
	}
	return &Bounded[T]{
		name:    name,
		maxSize: maxSize,
		store:   store,
	}, nil
}

func (c *Bounded[T]) Name() string {
	return c.name
}

func (c *Bounded[T]) Capacity() int {
	return c.maxSize
}

func (c *Bounded[T]) Size() int {
	return c.store.Len()
}

func (c *Bounded[T]) IsEmpty() bool {
	return c.store.Len() == 0
}

func (c *Bounded[T]) Append(v T) {
	if c.store.Len() >= c.maxSize {
		c.EvictOldest()
	}
	c.store.Push(v)
	cacheEntries.WithLabelValues(c.name).Set(float64(c.store.Len()))
}

func (c *Bounded[T]) EvictOldest() bool {
	if c.store.Len() == 0 {
		return false
	}
	c.store.DropOldest()
	cacheEvictions.WithLabelValues(c.name).Inc()
	cacheEntries.WithLabelValues(c.name).Set(float64(c.store.Len()))
	log.Debug().Str("cache", c.name).Int("size", c.store.Len()).Msg("Evicted oldest entry")
	return true
}

func (c *Bounded[T]) IndexOf(v T) int {
	return c.store.IndexOf(v)
}

func (c *Bounded[T]) ValueAt(i int) (T, error) {
	if i < 0 || i >= c.store.Len() {
		var zero T
		return zero, fmt.Errorf("cache %q: index %d not in [0, %d): %w", c.name, i, c.store.Len(), ErrOutOfRange)
	}
	return c.store.At(i), nil
}

func (c *Bounded[T]) String() string {
	return fmt.Sprintf("Name: %s (%d/%d)", c.name, c.store.Len(), c.maxSize)
}
