// Package memo wraps expensive functions of numeric arrays with a pair of
// index-aligned bounded caches so that repeated (or nearly repeated) inputs
// are answered without re-evaluating the function.
package memo

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/longbow-memo/internal/cache"
)

// Func is a memoized unary function of a numeric array.
//
// Func is not safe for concurrent use unless it was built WithLock.
type Func[O any] struct {
	name    string
	f       func(mat.Matrix) (O, error)
	inputs  cache.Cache[mat.Matrix]
	outputs cache.Cache[O]
	lock    sync.Locker

	calls       uint64
	hits        uint64
	evaluations uint64
}

// Entry is one cached input/output pair.
type Entry[O any] struct {
	Input  mat.Matrix
	Output O
}

// New wraps f. By default inputs are held in an array cache using the
// configured distance and tolerance; outputs are held in an array cache
// when O is mat.Matrix and in an exact cache otherwise.
func New[O any](f func(mat.Matrix) (O, error), opts ...Option) (*Func[O], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if f == nil {
		return nil, fmt.Errorf("memo %q: nil function: %w", cfg.name, cache.ErrInvalidConfig)
	}

	inputFactory := cfg.inputFactory
	if inputFactory == nil {
		inputFactory = cfg.arrayFactory()
	}

	var outputFactory cache.Factory[O]
	switch of := cfg.outputFactory.(type) {
	case nil:
		outputFactory = defaultOutputFactory[O](cfg)
	case cache.Factory[O]:
		outputFactory = of
	default:
		var zero O
		return nil, fmt.Errorf("memo %q: output cache factory %T does not hold %T: %w", cfg.name, of, zero, cache.ErrInvalidConfig)
	}

	inputs, err := inputFactory(cfg.maxSize, cfg.name+" inputs")
	if err != nil {
		return nil, fmt.Errorf("failed to create input cache: %w", err)
	}
	outputs, err := outputFactory(cfg.maxSize, cfg.name+" outputs")
	if err != nil {
		return nil, fmt.Errorf("failed to create output cache: %w", err)
	}
	if inputs.Capacity() != outputs.Capacity() {
		return nil, fmt.Errorf("memo %q: input capacity %d differs from output capacity %d: %w",
			cfg.name, inputs.Capacity(), outputs.Capacity(), cache.ErrInvalidConfig)
	}
	if !inputs.IsEmpty() || !outputs.IsEmpty() {
		return nil, fmt.Errorf("memo %q: caches must start empty: %w", cfg.name, cache.ErrInvalidConfig)
	}

	return &Func[O]{
		name:    cfg.name,
		f:       f,
		inputs:  inputs,
		outputs: outputs,
		lock:    cfg.lock,
	}, nil
}

// cloner is implemented by output types that know how to deep copy
// themselves, such as model.State.
type cloner[O any] interface {
	Clone() O
}

// defaultOutputFactory picks an array cache when O is mat.Matrix. Other
// outputs go to an exact cache, which copies them when O is a cloner.
func defaultOutputFactory[O any](cfg config) cache.Factory[O] {
	if f, ok := any(cfg.arrayFactory()).(cache.Factory[O]); ok {
		return f
	}
	var zero O
	if _, ok := any(zero).(cloner[O]); ok {
		return cache.ExactFactory[O](nil, cache.WithClone(func(v O) O {
			return any(v).(cloner[O]).Clone()
		}))
	}
	return cache.ExactFactory[O](nil)
}

// Name returns the label of the function.
func (m *Func[O]) Name() string {
	return m.name
}

// Call returns f(x), reusing a cached result when x is within tolerance of
// a previously evaluated input. Errors from f are returned unchanged and
// leave both caches untouched.
func (m *Func[O]) Call(x mat.Matrix) (O, error) {
	if m.lock != nil {
		m.lock.Lock()
		defer m.lock.Unlock()
	}

	m.calls++
	callsTotal.WithLabelValues(m.name).Inc()

	if i := m.inputs.IndexOf(x); i != cache.NotFound {
		y, err := m.outputs.ValueAt(i)
		if err != nil {
			var zero O
			return zero, fmt.Errorf("memo %q: no output for cached input %d: %w", m.name, i, err)
		}
		m.hits++
		hitsTotal.WithLabelValues(m.name).Inc()
		return y, nil
	}

	start := time.Now()
	y, err := m.f(x)
	if err != nil {
		var zero O
		return zero, err
	}
	elapsed := time.Since(start)
	evaluationDuration.WithLabelValues(m.name).Observe(elapsed.Seconds())

	m.evaluations++
	evaluationsTotal.WithLabelValues(m.name).Inc()
	m.record(x, y)

	log.Debug().
		Str("func", m.name).
		Dur("elapsed", elapsed).
		Int("cached", m.inputs.Size()).
		Msg("Cache miss, evaluated")
	return y, nil
}

// record is the only place the caches are mutated. Both caches have the
// same capacity and size, so they evict the same pair.
func (m *Func[O]) record(x mat.Matrix, y O) {
	m.inputs.Append(x)
	m.outputs.Append(y)
}

// CallMany evaluates every row of xs. A mat.Vector is a single point.
func (m *Func[O]) CallMany(xs mat.Matrix) ([]O, error) {
	if v, ok := xs.(mat.Vector); ok {
		y, err := m.Call(v)
		if err != nil {
			return nil, err
		}
		return []O{y}, nil
	}

	r, c := xs.Dims()
	out := make([]O, r)
	for i := 0; i < r; i++ {
		row := mat.NewVecDense(c, mat.Row(nil, i, xs))
		y, err := m.Call(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}

// Stats returns a snapshot of the counters and cache occupancy.
func (m *Func[O]) Stats() Stats {
	if m.lock != nil {
		m.lock.Lock()
		defer m.lock.Unlock()
	}
	return Stats{
		Name:        m.name,
		Calls:       m.calls,
		Hits:        m.hits,
		Evaluations: m.evaluations,
		Size:        m.inputs.Size(),
		Capacity:    m.inputs.Capacity(),
	}
}

// HitRate returns 1 - evaluations/calls. ok is false before the first call.
func (m *Func[O]) HitRate() (rate float64, ok bool) {
	return m.Stats().HitRate()
}

// Snapshot returns the cached pairs, oldest first.
func (m *Func[O]) Snapshot() ([]Entry[O], error) {
	if m.lock != nil {
		m.lock.Lock()
		defer m.lock.Unlock()
	}

	n := m.inputs.Size()
	entries := make([]Entry[O], 0, n)
	for i := 0; i < n; i++ {
		x, err := m.inputs.ValueAt(i)
		if err != nil {
			return nil, err
		}
		y, err := m.outputs.ValueAt(i)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry[O]{Input: x, Output: y})
	}
	return entries, nil
}

func (m *Func[O]) String() string {
	s := m.Stats()
	return fmt.Sprintf("Cached function %s: evaluations = %d (%d actual)", s.Name, s.Calls, s.Evaluations)
}
