package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/longbow-memo/internal/memo"
	"github.com/23skdu/longbow-memo/internal/model"
)

var (
	pointsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memo_points_evaluated_total",
		Help: "The total number of points received by the servers",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memo_http_request_duration_seconds",
		Help:    "Time spent processing eval requests",
		Buckets: prometheus.DefBuckets,
	})
)

// Evaluator is the memoized model served over HTTP and Flight.
type Evaluator interface {
	Call(x mat.Matrix) (model.State, error)
	Stats() memo.Stats
}

type Server struct {
	fn       Evaluator
	numInput int
	limit    int64
	sem      *semaphore.Weighted
}

func NewServer(fn Evaluator, numInput, maxConcurrent int) *Server {
	return &Server{
		fn:       fn,
		numInput: numInput,
		limit:    int64(maxConcurrent),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// weight caps a request's semaphore weight at the pool size.
func weight(n int, limit int64) int64 {
	if int64(n) > limit {
		return limit
	}
	return int64(n)
}

// evalRequest is the CBOR body of POST /eval.
type evalRequest struct {
	Points [][]float64 `cbor:"points"`
}

type evalResult struct {
	F        []float64 `cbor:"f"`
	Grad     []float64 `cbor:"grad,omitempty"`
	GradRows int       `cbor:"grad_rows,omitempty"`
	GradCols int       `cbor:"grad_cols,omitempty"`
}

type evalResponse struct {
	Results []evalResult `cbor:"results"`
}

type statsResponse struct {
	memo.Stats
	HitRate float64 `json:"hit_rate"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/eval", s.handleEval)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func serve(fn Evaluator, numInput int) {
	var wg sync.WaitGroup
	if *flightAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			StartFlightServer(*flightAddr, fn, numInput, *maxConcurrent)
		}()
	}
	if *listenAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			startServer(*listenAddr, NewServer(fn, numInput, *maxConcurrent))
		}()
	}
	wg.Wait()
}

func startServer(addr string, srv *Server) {
	log.Info().Str("addr", addr).Msg("Starting Memo Server")
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

var tracer = otel.Tracer("memo-server")

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleEval", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evalRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Bad Request (CBOR decode): %v", err), http.StatusBadRequest)
		return
	}

	for i, p := range req.Points {
		if len(p) != s.numInput {
			http.Error(w, fmt.Sprintf("Bad Request: point %d has %d coordinates, want %d", i, len(p), s.numInput), http.StatusBadRequest)
			return
		}
	}

	span.SetAttributes(attribute.Int("point_count", len(req.Points)))

	resp := evalResponse{Results: make([]evalResult, 0, len(req.Points))}
	if len(req.Points) > 0 {
		// Admission Control
		n := weight(len(req.Points), s.limit)
		if err := s.sem.Acquire(ctx, n); err != nil {
			log.Error().Err(err).Msg("Failed to acquire semaphore")
			http.Error(w, "Server busy", http.StatusServiceUnavailable)
			return
		}
		defer s.sem.Release(n)
	}

	for i, p := range req.Points {
		state, err := s.fn.Call(mat.NewVecDense(len(p), p))
		if err != nil {
			span.RecordError(err)
			status := http.StatusInternalServerError
			if errors.Is(err, model.ErrDimension) {
				status = http.StatusBadRequest
			}
			http.Error(w, fmt.Sprintf("point %d: %v", i, err), status)
			return
		}
		resp.Results = append(resp.Results, toResult(state))
	}
	pointsEvaluated.Add(float64(len(req.Points)))

	data, err := cbor.Marshal(resp)
	if err != nil {
		span.RecordError(err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write eval response")
	}
}

func toResult(state model.State) evalResult {
	res := evalResult{F: state.F}
	if state.Grad != nil {
		res.GradRows, res.GradCols = state.Grad.Dims()
		res.Grad = mat.DenseCopyOf(state.Grad).RawMatrix().Data
	}
	return res
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.fn.Stats()
	rate, _ := stats.HitRate()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statsResponse{Stats: stats, HitRate: rate}); err != nil {
		log.Warn().Err(err).Msg("Failed to write stats response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
