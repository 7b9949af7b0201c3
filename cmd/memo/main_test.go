package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/longbow-memo/internal/memo"
	"github.com/23skdu/longbow-memo/internal/model"
)

func TestParsePoint(t *testing.T) {
	x, err := parsePoint(" 1.5, -2,3e-2 ", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2, 0.03}, x)

	_, err = parsePoint("1,2", 3)
	assert.ErrorIs(t, err, model.ErrDimension)

	_, err = parsePoint("1,abc,3", 3)
	assert.ErrorContains(t, err, "coordinate 1")
}

func TestRun_JitterBelowTolerance(t *testing.T) {
	calls := 0
	f := func(x mat.Matrix) (model.State, error) {
		calls++
		return model.State{F: []float64{x.At(0, 0)}}, nil
	}
	fn, err := memo.New(f, memo.WithName("run-jitter"), memo.WithTolerance(1e-6))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 7))
	require.NoError(t, run(fn, []float64{1, 2}, 20, 1e-9, rng))

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(20), fn.Stats().Calls)
}

func TestRun_JitterAboveTolerance(t *testing.T) {
	fn, err := memo.New(func(x mat.Matrix) (model.State, error) {
		return model.State{F: []float64{x.At(0, 0)}}, nil
	}, memo.WithName("run-spread"), memo.WithMaxSize(4))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 7))
	require.NoError(t, run(fn, []float64{1}, 10, 0.5, rng))

	stats := fn.Stats()
	assert.Equal(t, uint64(10), stats.Evaluations)
	assert.Equal(t, 4, stats.Size)
}

func TestSnapshotColumns(t *testing.T) {
	fn, err := memo.New(func(x mat.Matrix) (model.State, error) {
		return model.State{F: []float64{2 * x.At(0, 0), 3 * x.At(1, 0)}}, nil
	}, memo.WithName("snapshot-columns"))
	require.NoError(t, err)

	for _, p := range [][]float64{{1, 1}, {2, 2}} {
		_, err := fn.Call(mat.NewVecDense(2, p))
		require.NoError(t, err)
	}

	inputs, outputs, err := snapshotColumns(fn)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 1}, {2, 2}}, inputs)
	assert.Equal(t, [][]float64{{2, 3}, {4, 6}}, outputs)
}
