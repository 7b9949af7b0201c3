package client

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
)

// Putter is the part of FlightClient the Publisher needs.
type Putter interface {
	DoPut(ctx context.Context, dataset string, record arrow.RecordBatch) error
}

// Publisher exports cache snapshots to a Flight dataset behind a circuit breaker.
type Publisher struct {
	putter  Putter
	dataset string
	breaker *CircuitBreaker
	builder *RecordBatchBuilder
}

// NewPublisher creates a Publisher. A nil breaker gets a default one.
func NewPublisher(putter Putter, dataset string, breaker *CircuitBreaker) *Publisher {
	if breaker == nil {
		breaker = NewCircuitBreaker(3, defaultBreakerTimeout)
	}
	return &Publisher{
		putter:  putter,
		dataset: dataset,
		breaker: breaker,
		builder: NewRecordBatchBuilder(memory.NewGoAllocator()),
	}
}

// Publish sends the paired inputs and outputs as one record batch.
func (p *Publisher) Publish(ctx context.Context, inputs, outputs [][]float64) error {
	rec, err := p.builder.BuildRecordBatch(inputs, outputs)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	defer rec.Release()

	err = p.breaker.Execute(func() error {
		return p.putter.DoPut(ctx, p.dataset, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to publish snapshot to %q: %w", p.dataset, err)
	}
	log.Debug().Str("dataset", p.dataset).Int64("rows", rec.NumRows()).Msg("Published cache snapshot")
	return nil
}
