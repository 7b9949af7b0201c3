package main

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/mat"
)

// inputColumn names the list<float64> column DoPut evaluates.
const inputColumn = "input"

// MemoFlightServer evaluates every point pushed to it through the memoized model.
type MemoFlightServer struct {
	flight.BaseFlightServer
	fn       Evaluator
	numInput int
	limit    int64
	sem      *semaphore.Weighted
	alloc    memory.Allocator
}

func NewMemoFlightServer(fn Evaluator, numInput, maxConcurrent int) *MemoFlightServer {
	return &MemoFlightServer{
		fn:       fn,
		numInput: numInput,
		limit:    int64(maxConcurrent),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		alloc:    memory.NewGoAllocator(),
	}
}

func (s *MemoFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	return fmt.Errorf("DoExchange not implemented")
}

func (s *MemoFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	ctx, span := tracer.Start(stream.Context(), "DoPut")
	defer span.End()

	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.alloc))
	if err != nil {
		return err
	}
	defer reader.Release()

	for reader.Next() {
		rec := reader.Record()
		n, err := s.evalRecord(ctx, rec)
		if err != nil {
			span.RecordError(err)
			log.Error().Err(err).Msg("DoPut evaluation failed")
			return err
		}
		pointsEvaluated.Add(float64(n))
		span.AddEvent("batch", trace.WithAttributes(attribute.Int("rows", int(rec.NumRows()))))
		log.Info().Int64("rows", rec.NumRows()).Int("evaluated", n).Msg("DoPut received batch")
	}
	return reader.Err()
}

func (s *MemoFlightServer) evalRecord(ctx context.Context, rec arrow.RecordBatch) (int, error) {
	idx := rec.Schema().FieldIndices(inputColumn)
	if len(idx) == 0 {
		return 0, fmt.Errorf("record has no %q column", inputColumn)
	}
	list, ok := rec.Column(idx[0]).(*array.List)
	if !ok {
		return 0, fmt.Errorf("column %q is %s, want list<float64>", inputColumn, rec.Column(idx[0]).DataType())
	}
	values, ok := list.ListValues().(*array.Float64)
	if !ok {
		return 0, fmt.Errorf("column %q has %s values, want float64", inputColumn, list.ListValues().DataType())
	}

	rows := list.Len()
	if rows == 0 {
		return 0, nil
	}
	w := weight(rows, s.limit)
	if err := s.sem.Acquire(ctx, w); err != nil {
		return 0, err
	}
	defer s.sem.Release(w)

	raw := values.Float64Values()
	evaluated := 0
	for i := 0; i < rows; i++ {
		if list.IsNull(i) {
			continue
		}
		start, end := list.ValueOffsets(i)
		if int(end-start) != s.numInput {
			return evaluated, fmt.Errorf("row %d has %d coordinates, want %d", i, end-start, s.numInput)
		}
		point := make([]float64, s.numInput)
		copy(point, raw[start:end])
		if _, err := s.fn.Call(mat.NewVecDense(len(point), point)); err != nil {
			return evaluated, fmt.Errorf("row %d: %w", i, err)
		}
		evaluated++
	}
	return evaluated, nil
}

func StartFlightServer(addr string, fn Evaluator, numInput, maxConcurrent int) {
	server := flight.NewFlightServer()
	server.RegisterFlightService(NewMemoFlightServer(fn, numInput, maxConcurrent))

	if err := server.Init(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to init Flight server")
	}

	log.Info().Str("addr", addr).Msg("Starting Memo Flight Server")
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("Flight server failed")
	}
}
