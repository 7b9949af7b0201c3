package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-memo/internal/cache"
	"github.com/23skdu/longbow-memo/internal/client"
	"github.com/23skdu/longbow-memo/internal/memo"
	"github.com/23skdu/longbow-memo/internal/model"
)

var (
	modelName     = flag.String("model", "catalysis", "Forward model ("+strings.Join(model.Names(), ", ")+")")
	pointFlag     = flag.String("x", "0.0216,0.0292,0.0219,0.0021,0.0048", "Comma separated evaluation point")
	repeat        = flag.Int("repeat", 10, "Number of calls to make at the point")
	jitter        = flag.Float64("jitter", 0, "Uniform perturbation added to each coordinate on every call")
	seed          = flag.Uint64("seed", 1, "Seed for the jitter generator")
	tolerance     = flag.Float64("tolerance", cache.DefaultTolerance, "Distance at which two inputs are treated as equal")
	maxSize       = flag.Int("max-size", cache.DefaultMaxSize, "Capacity of the input and output caches")
	writeArrow    = flag.Bool("arrow", false, "Write the cache snapshot as an Arrow IPC stream to stdout")
	serverAddr    = flag.String("server", "", "Flight server receiving cache snapshots (e.g., localhost:3000)")
	datasetName   = flag.String("dataset", "memo_snapshots", "Target dataset name on the Flight server")
	listenAddr    = flag.String("listen", "", "Address to listen on for HTTP Server (e.g. :8080)")
	flightAddr    = flag.String("flight", "", "Address to listen on for Flight Server (e.g. :9090)")
	maxConcurrent = flag.Int("max-concurrent", 64, "Maximum number of points evaluated concurrently by the servers")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
	logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", *logLevel).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	m, err := model.Lookup(*modelName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load model")
	}
	log.Info().Str("model", m.Name()).Int("inputs", m.NumInput()).Int("outputs", m.NumOutput()).Msg("Loaded model")

	opts := []memo.Option{
		memo.WithName(*modelName),
		memo.WithMaxSize(*maxSize),
		memo.WithTolerance(*tolerance),
	}
	if *listenAddr != "" || *flightAddr != "" {
		opts = append(opts, memo.WithLock(&sync.Mutex{}))
	}
	fn, err := memo.New(m.Eval, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create memoized model")
	}

	if *listenAddr != "" || *flightAddr != "" {
		serve(fn, m.NumInput())
		return
	}

	x, err := parsePoint(*pointFlag, m.NumInput())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid evaluation point")
	}

	start := time.Now()
	if err := run(fn, x, *repeat, *jitter, rand.New(rand.NewPCG(*seed, *seed))); err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}
	elapsed := time.Since(start)

	stats := fn.Stats()
	rate, _ := stats.HitRate()
	log.Info().
		Uint64("calls", stats.Calls).
		Uint64("evaluations", stats.Evaluations).
		Float64("hit_rate", rate).
		Int("cached", stats.Size).
		Dur("elapsed", elapsed).
		Msg(fn.String())

	if *serverAddr == "" && !*writeArrow {
		return
	}

	inputs, outputs, err := snapshotColumns(fn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read cache snapshot")
	}

	if *serverAddr != "" {
		log.Info().Int("count", len(inputs)).Str("server", *serverAddr).Str("dataset", *datasetName).Msg("Sending cache snapshot")
		flightClient, err := client.NewFlightClient(*serverAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Flight server")
		}
		defer func() {
			if err := flightClient.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close flight client")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := client.NewPublisher(flightClient, *datasetName, nil).Publish(ctx, inputs, outputs); err != nil {
			log.Fatal().Err(err).Msg("Flight DoPut failed")
		}
		log.Info().Msg("Successfully sent cache snapshot")
		return
	}

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildRecordBatch(inputs, outputs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build record batch")
	}
	if rec == nil {
		return
	}
	defer rec.Release()
	if err := writeArrowStream(os.Stdout, rec); err != nil {
		log.Warn().Err(err).Msg("Failed to write arrow stream")
	}
}

// run calls fn repeat times at x, perturbing every coordinate by up to
// ±jitter on each call.
func run(fn *memo.Func[model.State], x []float64, repeat int, jitter float64, rng *rand.Rand) error {
	point := make([]float64, len(x))
	for i := 0; i < repeat; i++ {
		for j := range x {
			point[j] = x[j]
			if jitter > 0 {
				point[j] += jitter * (2*rng.Float64() - 1)
			}
		}
		if _, err := fn.Call(mat.NewVecDense(len(point), point)); err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
	}
	return nil
}

func parsePoint(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("got %d coordinates, model takes %d: %w", len(fields), n, model.ErrDimension)
	}
	x := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		x[i] = v
	}
	return x, nil
}

func snapshotColumns(fn *memo.Func[model.State]) (inputs, outputs [][]float64, err error) {
	entries, err := fn.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	inputs = make([][]float64, len(entries))
	outputs = make([][]float64, len(entries))
	for i, e := range entries {
		inputs[i] = cache.Flatten(e.Input)
		outputs[i] = e.Output.F
	}
	return inputs, outputs, nil
}

func writeArrowStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("memo"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
