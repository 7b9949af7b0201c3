package client

import (
	"context"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFlightServer struct {
	flight.BaseFlightServer

	mu       sync.Mutex
	paths    []string
	received int64
}

func (s *mockFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer reader.Release()

	s.mu.Lock()
	if desc := reader.LatestFlightDescriptor(); desc != nil && len(desc.Path) > 0 {
		s.paths = append(s.paths, desc.Path[0])
	}
	s.mu.Unlock()

	for reader.Next() {
		s.mu.Lock()
		s.received += reader.Record().NumRows()
		s.mu.Unlock()
	}
	return reader.Err()
}

func TestFlightClient_DoPut(t *testing.T) {
	mockServer := &mockFlightServer{}
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(mockServer)

	err := server.Init("localhost:0")
	require.NoError(t, err)
	addr := server.Addr().String()

	go func() {
		_ = server.Serve()
	}()
	defer server.Shutdown()

	client, err := NewFlightClient(addr)
	require.NoError(t, err)
	defer client.Close()

	rb, err := NewRecordBatchBuilder(memory.NewGoAllocator()).BuildRecordBatch(
		[][]float64{{0.1, 0.2}, {0.3, 0.4}},
		[][]float64{{1}, {2}},
	)
	require.NoError(t, err)
	defer rb.Release()

	var rec arrow.RecordBatch = rb
	err = client.DoPut(context.Background(), "memo-snapshots", rec)
	assert.NoError(t, err)
}

func TestFlightClient_DoPutNilBatch(t *testing.T) {
	// Nothing listens here; a nil batch must not open a stream.
	client, err := NewFlightClient("localhost:1")
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.DoPut(context.Background(), "memo-snapshots", nil))
}
