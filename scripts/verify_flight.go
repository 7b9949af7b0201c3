//go:build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-memo/internal/client"
)

// Pushes a small batch of catalysis rate vectors to a running
// `memo -model catalysis -flight :9090` and reports the round trip.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := "localhost:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	log.Info().Str("addr", addr).Msg("Connecting to Memo Flight Server")

	var c *client.FlightClient
	var err error
	for i := 0; i < 10; i++ {
		c, err = client.NewFlightClient(addr)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msg("Connection failed, retrying...")
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect after retries")
	}
	defer c.Close()

	base := []float64{0.0216, 0.0292, 0.0219, 0.0021, 0.0048}
	inputs := make([][]float64, 0, 6)
	outputs := make([][]float64, 0, 6)
	for i := 0; i < 3; i++ {
		p := make([]float64, len(base))
		for j := range base {
			p[j] = base[j] * (1 + 0.1*float64(i))
		}
		// each point twice, the second push should be a cache hit
		inputs = append(inputs, p, p)
		outputs = append(outputs, nil, nil)
	}

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildRecordBatch(inputs, outputs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build record batch")
	}
	defer rec.Release()

	log.Info().Int("count", len(inputs)).Msg("Sending points")

	start := time.Now()
	if err := c.DoPut(context.Background(), "verify", rec); err != nil {
		log.Fatal().Err(err).Msg("DoPut failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Points accepted; check /stats for 3 evaluations")

	fmt.Println("VERIFICATION PASSED")
}
