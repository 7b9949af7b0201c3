package cache

import "reflect"

// ExactStore matches values with an equality predicate.
type ExactStore[T any] struct {
	entries *ring[T]
	equal   func(a, b T) bool
	clone   func(T) T
}

// ExactOption configures an ExactStore.
type ExactOption[T any] func(*ExactStore[T])

// WithClone makes the store keep clone(v) on Push and hand out a fresh
// clone on every At, so stored values never alias caller memory.
func WithClone[T any](clone func(T) T) ExactOption[T] {
	return func(s *ExactStore[T]) {
		s.clone = clone
	}
}

// NewExactStore creates a store for up to capacity values. A nil equal
// falls back to reflect.DeepEqual.
func NewExactStore[T any](capacity int, equal func(a, b T) bool, opts ...ExactOption[T]) *ExactStore[T] {
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	s := &ExactStore[T]{
		entries: newRing[T](capacity),
		equal:   equal,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExactStore[T]) Len() int    { return s.entries.len() }
func (s *ExactStore[T]) DropOldest() { s.entries.popFront() }

func (s *ExactStore[T]) Push(v T) {
	if s.clone != nil {
		v = s.clone(v)
	}
	s.entries.push(v)
}

func (s *ExactStore[T]) At(i int) T {
	v := s.entries.at(i)
	if s.clone != nil {
		return s.clone(v)
	}
	return v
}

// IndexOf returns the newest index holding a value equal to v.
func (s *ExactStore[T]) IndexOf(v T) int {
	for i := s.entries.len() - 1; i >= 0; i-- {
		if s.equal(v, s.entries.at(i)) {
			return i
		}
	}
	return NotFound
}

// NewExact creates a bounded cache with exact-match lookups.
func NewExact[T any](maxSize int, name string, equal func(a, b T) bool, opts ...ExactOption[T]) (*Bounded[T], error) {
	if maxSize <= 0 {
		return NewBounded[T](maxSize, name, nil)
	}
	return NewBounded[T](maxSize, name, NewExactStore(maxSize, equal, opts...))
}

// ExactFactory returns a Factory producing exact-match caches.
func ExactFactory[T any](equal func(a, b T) bool, opts ...ExactOption[T]) Factory[T] {
	return func(maxSize int, name string) (Cache[T], error) {
		c, err := NewExact(maxSize, name, equal, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
