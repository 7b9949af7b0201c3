package cache

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DistanceFunc measures how far apart two arrays are. Arrays of different
// shape must be reported as +Inf.
type DistanceFunc func(a, b mat.Matrix) float64

// Euclidean returns the L2 distance between a and b. For matrices this is
// the Frobenius norm of the difference.
func Euclidean(a, b mat.Matrix) float64 {
	return minkowski(a, b, 2)
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b mat.Matrix) float64 {
	return minkowski(a, b, 1)
}

// Chebyshev returns the largest absolute element-wise difference.
func Chebyshev(a, b mat.Matrix) float64 {
	return minkowski(a, b, math.Inf(1))
}

// Minkowski returns the L-p distance. p should be >= 1 for the result to be a metric.
func Minkowski(p float64) DistanceFunc {
	return func(a, b mat.Matrix) float64 {
		return minkowski(a, b, p)
	}
}

func minkowski(a, b mat.Matrix, p float64) float64 {
	if !sameShape(a, b) {
		return math.Inf(1)
	}
	return floats.Distance(rawValues(a), rawValues(b), p)
}

// Shape returns the dimensions of m with vectors of either orientation
// regularized to a single row.
func Shape(m mat.Matrix) (rows, cols int) {
	r, c := m.Dims()
	if r == 1 || c == 1 {
		return 1, r * c
	}
	return r, c
}

func sameShape(a, b mat.Matrix) bool {
	ar, ac := Shape(a)
	br, bc := Shape(b)
	return ar == br && ac == bc
}

// Flatten copies the elements of m in row-major order.
func Flatten(m mat.Matrix) []float64 {
	raw := rawValues(m)
	out := make([]float64, len(raw))
	copy(out, raw)
	return out
}

// rawValues returns the row-major elements of m. Contiguous gonum storage is
// returned without copying and must not be modified.
func rawValues(m mat.Matrix) []float64 {
	r, c := m.Dims()
	switch v := m.(type) {
	case mat.RawVectorer:
		if rv := v.RawVector(); rv.Inc == 1 {
			return rv.Data[:rv.N]
		}
	case mat.RawMatrixer:
		if rm := v.RawMatrix(); rm.Stride == rm.Cols {
			return rm.Data[:rm.Rows*rm.Cols]
		}
	}
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}
