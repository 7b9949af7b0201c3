package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/longbow-memo/internal/client"
	"github.com/23skdu/longbow-memo/internal/memo"
	"github.com/23skdu/longbow-memo/internal/model"
)

// countingEvaluator sums the first coordinate of every point it sees.
type countingEvaluator struct {
	calls atomic.Int64
	sum   atomic.Int64
}

func (c *countingEvaluator) Call(x mat.Matrix) (model.State, error) {
	c.calls.Add(1)
	c.sum.Add(int64(x.At(0, 0)))
	return model.State{F: []float64{x.At(0, 0)}}, nil
}

func (c *countingEvaluator) Stats() memo.Stats {
	return memo.Stats{Calls: uint64(c.calls.Load())}
}

func snapshotRecord(t *testing.T, mem memory.Allocator, inputs [][]float64) arrow.RecordBatch {
	t.Helper()
	outputs := make([][]float64, len(inputs))
	for i := range outputs {
		outputs[i] = []float64{0}
	}
	rec, err := client.NewRecordBatchBuilder(mem).BuildRecordBatch(inputs, outputs)
	require.NoError(t, err)
	return rec
}

func TestFlightServer_EvalRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ev := &countingEvaluator{}
	srv := NewMemoFlightServer(ev, 2, 2)

	rec := snapshotRecord(t, mem, [][]float64{{1, 0}, {2, 0}, {3, 0}})
	defer rec.Release()

	n, err := srv.evalRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(6), ev.sum.Load())
}

func TestFlightServer_EvalRecordErrors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	t.Run("dimension", func(t *testing.T) {
		ev := &countingEvaluator{}
		rec := snapshotRecord(t, mem, [][]float64{{1, 0}, {2}})
		defer rec.Release()

		n, err := NewMemoFlightServer(ev, 2, 2).evalRecord(context.Background(), rec)
		assert.Error(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("missing column", func(t *testing.T) {
		schema := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Float64}}, nil)
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues([]float64{1}, nil)
		col := b.NewArray()
		defer col.Release()
		rec := array.NewRecordBatch(schema, []arrow.Array{col}, 1)
		defer rec.Release()

		_, err := NewMemoFlightServer(&countingEvaluator{}, 1, 2).evalRecord(context.Background(), rec)
		assert.ErrorContains(t, err, `no "input" column`)
	})
}

func TestFlightServer_DoPut(t *testing.T) {
	ev := &countingEvaluator{}
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(NewMemoFlightServer(ev, 1, 4))

	require.NoError(t, server.Init("localhost:0"))
	go func() {
		_ = server.Serve()
	}()
	defer server.Shutdown()

	fc, err := client.NewFlightClient(server.Addr().String())
	require.NoError(t, err)
	defer fc.Close()

	rec := snapshotRecord(t, memory.NewGoAllocator(), [][]float64{{1}, {2}, {3}, {4}})
	defer rec.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fc.DoPut(ctx, "points", rec))

	assert.Eventually(t, func() bool {
		return ev.calls.Load() == 4
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(10), ev.sum.Load())
}
