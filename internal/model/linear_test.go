package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// decay is dy/dt = -(k0 + k1) y, with analytic sensitivities.
func decay(t *testing.T, skipHessian bool) *LinearSystem {
	t.Helper()
	s, err := NewLinearSystem(LinearConfig{
		Name:      "decay",
		NumParams: 2,
		Y0:        []float64{2},
		Times:     []float64{0, 0.5, 1, 2},
		Matrix: func(k []float64) (*mat.Dense, []*mat.Dense) {
			return mat.NewDense(1, 1, []float64{-(k[0] + k[1])}),
				[]*mat.Dense{mat.NewDense(1, 1, []float64{-1}), mat.NewDense(1, 1, []float64{-1})}
		},
		SkipHessian: skipHessian,
	})
	require.NoError(t, err)
	return s
}

func TestLinearSystem_AnalyticDecay(t *testing.T) {
	s := decay(t, false)
	k := []float64{0.3, 0.4}
	rate := k[0] + k[1]

	state, err := s.Eval(mat.NewVecDense(2, k))
	require.NoError(t, err)
	require.Len(t, state.F, 4)
	require.Len(t, state.Hess, 4)

	for i, tm := range []float64{0, 0.5, 1, 2} {
		y := 2 * math.Exp(-rate*tm)
		assert.InDelta(t, y, state.F[i], 1e-12, "F at t=%g", tm)
		for p := 0; p < 2; p++ {
			assert.InDelta(t, -tm*y, state.Grad.At(i, p), 1e-12, "dF/dk%d at t=%g", p, tm)
		}
		for p := 0; p < 2; p++ {
			for q := 0; q < 2; q++ {
				assert.InDelta(t, tm*tm*y, state.Hess[i].At(p, q), 1e-11, "d2F/dk%ddk%d at t=%g", p, q, tm)
			}
		}
	}
}

func TestLinearSystem_SkipHessian(t *testing.T) {
	state, err := decay(t, true).Eval(mat.NewVecDense(2, []float64{1, 1}))
	require.NoError(t, err)
	assert.Nil(t, state.Hess)
	assert.NotNil(t, state.Grad)
}

func TestLinearSystem_Dimension(t *testing.T) {
	s := decay(t, true)

	_, err := s.Eval(mat.NewVecDense(3, nil))
	assert.ErrorIs(t, err, ErrDimension)

	_, err = s.Eval(mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, ErrDimension)

	// Row vectors are accepted as well as column vectors.
	_, err = s.Eval(mat.NewDense(1, 2, []float64{0.1, 0.2}))
	assert.NoError(t, err)
}

func TestNewLinearSystem_Validation(t *testing.T) {
	ok := func(k []float64) (*mat.Dense, []*mat.Dense) { return nil, nil }

	tests := []struct {
		name string
		cfg  LinearConfig
	}{
		{"no params", LinearConfig{Name: "a", Y0: []float64{1}, Times: []float64{0}, Matrix: ok}},
		{"no times", LinearConfig{Name: "b", NumParams: 1, Y0: []float64{1}, Matrix: ok}},
		{"no matrix", LinearConfig{Name: "c", NumParams: 1, Y0: []float64{1}, Times: []float64{0}}},
		{"bad observed", LinearConfig{Name: "d", NumParams: 1, Y0: []float64{1}, Times: []float64{0}, Observed: []int{1}, Matrix: ok}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewLinearSystem(tt.cfg)
			assert.Nil(t, s)
			assert.Error(t, err)
		})
	}
}
