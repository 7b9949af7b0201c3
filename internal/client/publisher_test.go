package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	mock.Mock
}

func (m *mockPutter) DoPut(ctx context.Context, dataset string, record arrow.RecordBatch) error {
	args := m.Called(ctx, dataset, record)
	return args.Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	putter := &mockPutter{}
	putter.On("DoPut", mock.Anything, "snapshots", mock.MatchedBy(func(rec arrow.RecordBatch) bool {
		return rec.NumRows() == 2 && rec.NumCols() == 3
	})).Return(nil).Once()

	p := NewPublisher(putter, "snapshots", nil)
	err := p.Publish(context.Background(),
		[][]float64{{1, 2}, {3, 4}},
		[][]float64{{5}, {6}},
	)
	require.NoError(t, err)
	putter.AssertExpectations(t)
}

func TestPublisher_EmptySnapshotIsNoop(t *testing.T) {
	putter := &mockPutter{}
	p := NewPublisher(putter, "snapshots", nil)

	assert.NoError(t, p.Publish(context.Background(), nil, nil))
	putter.AssertNotCalled(t, "DoPut", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublisher_OpensCircuit(t *testing.T) {
	errDown := errors.New("connection refused")
	putter := &mockPutter{}
	putter.On("DoPut", mock.Anything, "snapshots", mock.Anything).Return(errDown).Twice()

	p := NewPublisher(putter, "snapshots", NewCircuitBreaker(2, time.Hour))
	in, out := [][]float64{{1}}, [][]float64{{2}}

	assert.ErrorIs(t, p.Publish(context.Background(), in, out), errDown)
	assert.ErrorIs(t, p.Publish(context.Background(), in, out), errDown)
	// The sink is no longer contacted.
	assert.ErrorIs(t, p.Publish(context.Background(), in, out), ErrCircuitOpen)
	putter.AssertNumberOfCalls(t, "DoPut", 2)
}
