// Package server implements the HTTP server that exposes the question-answering
// agent via a JSON API. The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docqa-go/internal/agent"
	"github.com/54b3r/docqa-go/internal/corpus"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/logging"
)

// New constructs a Server from the provided agent, ingestion pipeline and
// config. pipeline may be nil, in which case POST /api/ingest accepts inline
// documents only.
func New(a *agent.Agent, pipeline *ingestion.Pipeline, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: agent must not be nil")
	}
	if pipeline == nil {
		pipeline = ingestion.NewPipeline(nil)
	}
	return newServer(a, pipeline, cfg), nil
}

// newServer fills config defaults and builds the handler chain. Tests call it
// directly with fakes.
func newServer(qa questionAnswerer, loader documentLoader, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast the answer timeout and URL ingestion.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.IngestTimeout == 0 {
		cfg.IngestTimeout = 5 * time.Minute
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		agent:   qa,
		loader:  loader,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}
	s.metrics.setCapability(qa.Capability())
	s.metrics.observeCorpus(qa.Snapshot())

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.rateLimitedTotal)
	s.stopRL = stop

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", rl.middleware(s.instrument("ask", s.handleAsk)))
	mux.Handle("POST /api/ingest", rl.middleware(s.instrument("ingest", s.handleIngest)))
	mux.Handle("GET /api/corpus", s.instrument("corpus", s.handleCorpus))
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root HTTP handler, including middleware.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("docqa server listening",
			slog.String("addr", "http://"+s.httpServer.Addr),
			slog.String("capability", s.agent.Capability().String()),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. Generation failures are reported with
// 200 and a descriptive answer plus the failure reason; only ranking errors
// produce a 5xx.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := s.decode(w, r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	if req.TopK < 0 {
		http.Error(w, "top_k must not be negative", http.StatusBadRequest)
		return
	}

	start := time.Now()
	resp, err := s.agent.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.metrics.observeAsk(outcomeError, time.Since(start))
		log.Error("ask failed", slog.Any("error", err))
		http.Error(w, "failed to rank fragments", http.StatusInternalServerError)
		return
	}

	out := askResponse{
		Answer:     resp.Answer,
		Sources:    resp.Sources,
		Fragments:  make([]fragmentResponse, 0, len(resp.Fragments)),
		Capability: resp.Capability.String(),
		SnapshotID: resp.SnapshotID,
	}
	for _, f := range resp.Fragments {
		out.Fragments = append(out.Fragments, fragmentResponse{Text: f.Text, Source: f.Source, Score: finiteScore(f.Score)})
	}

	outcome := outcomeOK
	switch {
	case resp.Failure != nil:
		outcome = string(resp.Failure.Reason)
		out.Failure = string(resp.Failure.Reason)
		log.Warn("answer generation failed",
			slog.String("reason", out.Failure),
			slog.Any("error", resp.Failure.Err),
		)
	case len(resp.Fragments) == 0:
		outcome = outcomeNoDocuments
	}
	s.metrics.observeAsk(outcome, time.Since(start))

	s.writeJSON(w, r, http.StatusOK, out)
}

// handleIngest handles POST /api/ingest. It loads every source and inline
// document, then replaces the corpus wholesale with the resulting fragments.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := s.decode(w, r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Sources) == 0 && len(req.Documents) == 0 {
		http.Error(w, "sources or documents are required", http.StatusBadRequest)
		return
	}
	if !s.cfg.AllowLocalSources {
		for _, src := range req.Sources {
			if !ingestion.IsURL(src) {
				http.Error(w, fmt.Sprintf("source %q is not an http(s) URL", src), http.StatusBadRequest)
				return
			}
		}
	}
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Source) == "" {
			http.Error(w, fmt.Sprintf("documents[%d].source is required", i), http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.IngestTimeout)
	defer cancel()

	progress := func(msg string) { log.Debug("ingest", slog.String("step", msg)) }

	fragments, err := s.loader.Ingest(ctx, req.Sources, progress)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeError).Inc()
		log.Warn("ingest failed", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	docs := make([]ingestion.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, ingestion.Document{Source: d.Source, Text: d.Text})
	}
	fragments = append(fragments, s.loader.ChunkDocuments(docs, progress)...)

	snap, err := s.agent.Replace(ctx, fragments)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeError).Inc()
		log.Error("corpus replace failed", slog.Any("error", err))
		status := http.StatusInternalServerError
		var dataErr *corpus.DataError
		if errors.As(err, &dataErr) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, "failed to replace corpus", status)
		return
	}

	s.metrics.ingestRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.observeCorpus(snap)

	s.writeJSON(w, r, http.StatusOK, ingestResponse{
		SnapshotID: snap.ID(),
		Fragments:  snap.Len(),
		Sources:    len(snap.Sources()),
	})
}

// handleCorpus handles GET /api/corpus, listing the ingested documents.
func (s *Server) handleCorpus(w http.ResponseWriter, r *http.Request) {
	snap := s.agent.Snapshot()
	sources := snap.Sources()
	if sources == nil {
		sources = []corpus.SourceCount{}
	}
	resp := corpusResponse{
		SnapshotID: snap.ID(),
		CreatedAt:  snap.CreatedAt(),
		Fragments:  snap.Len(),
		Sources:    sources,
		Capability: s.agent.Capability().String(),
	}
	savedAt, err := s.agent.SavedAt(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("read corpus save time", slog.Any("error", err))
		http.Error(w, "failed to read corpus save time", http.StatusInternalServerError)
		return
	}
	if !savedAt.IsZero() {
		resp.SavedAt = &savedAt
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

// finiteScore returns nil for NaN and infinite scores.
func finiteScore(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a size-limited JSON body into v, rejecting unknown fields.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
