package client

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrLengthMismatch is returned when inputs and outputs do not pair up.
var ErrLengthMismatch = errors.New("inputs and outputs differ in length")

// SnapshotSchema is the layout of an exported cache snapshot: one row per
// cached pair, oldest first.
var SnapshotSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "index", Type: arrow.PrimitiveTypes.Int64},
		{Name: "input", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
		{Name: "output", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	},
	nil,
)

// RecordBatchBuilder creates Arrow RecordBatches from cache snapshots.
type RecordBatchBuilder struct {
	mem memory.Allocator
}

// NewRecordBatchBuilder creates a new builder.
func NewRecordBatchBuilder(mem memory.Allocator) *RecordBatchBuilder {
	return &RecordBatchBuilder{mem: mem}
}

// BuildRecordBatch pairs inputs[i] with outputs[i]. It returns a nil batch
// for empty input. The caller must Release the result.
func (b *RecordBatchBuilder) BuildRecordBatch(inputs, outputs [][]float64) (arrow.RecordBatch, error) {
	if len(inputs) != len(outputs) {
		return nil, fmt.Errorf("%d inputs, %d outputs: %w", len(inputs), len(outputs), ErrLengthMismatch)
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	idxBuilder := array.NewInt64Builder(b.mem)
	defer idxBuilder.Release()
	inBuilder := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float64)
	defer inBuilder.Release()
	outBuilder := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float64)
	defer outBuilder.Release()

	inValues := inBuilder.ValueBuilder().(*array.Float64Builder)
	outValues := outBuilder.ValueBuilder().(*array.Float64Builder)

	for i := range inputs {
		idxBuilder.Append(int64(i))
		inBuilder.Append(true)
		inValues.AppendValues(inputs[i], nil)
		outBuilder.Append(true)
		outValues.AppendValues(outputs[i], nil)
	}

	cols := []arrow.Array{idxBuilder.NewArray(), inBuilder.NewArray(), outBuilder.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecordBatch(SnapshotSchema, cols, int64(len(inputs))), nil
}
