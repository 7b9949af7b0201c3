package client

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FlightClient ships cache snapshot batches to an Arrow Flight sink, or
// batches of points to a `memo -flight` evaluation server.
type FlightClient struct {
	addr   string
	client flight.Client
	conn   *grpc.ClientConn
}

// ensure interface compliance
var _ Putter = (*FlightClient)(nil)

// NewFlightClient dials addr without transport security. The connection is
// established lazily on the first DoPut.
func NewFlightClient(addr string) (*FlightClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create flight client for %s: %w", addr, err)
	}

	return &FlightClient{
		addr:   addr,
		client: flight.NewClientFromConn(conn, nil),
		conn:   conn,
	}, nil
}

// DoPut streams one snapshot batch under the dataset path. A nil batch is
// a no-op, matching an empty cache.
func (c *FlightClient) DoPut(ctx context.Context, dataset string, record arrow.RecordBatch) error {
	if record == nil {
		return nil
	}

	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to open DoPut stream to %s: %w", c.addr, err)
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(record.Schema()))
	writer.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{dataset},
	})

	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write %d snapshot rows to %q: %w", record.NumRows(), dataset, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close DoPut stream for %q: %w", dataset, err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (c *FlightClient) Close() error {
	return c.conn.Close()
}
