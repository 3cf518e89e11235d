package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docqa-go/internal/agent"
	"github.com/54b3r/docqa-go/internal/corpus"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed the answer timeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// IngestTimeout bounds one POST /api/ingest request (default: 5m).
	IngestTimeout time.Duration
	// MaxBodyBytes caps JSON request bodies (default: 32 MiB).
	MaxBodyBytes int64
	// AllowLocalSources lets POST /api/ingest read paths on the server's
	// filesystem. When false only URLs and inline documents are accepted.
	AllowLocalSources bool
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// MetricsRegistry receives the server's collectors.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// questionAnswerer is the part of *agent.Agent used by the handlers.
// Tests inject a fake.
type questionAnswerer interface {
	Ask(ctx context.Context, question string, topK int) (*agent.Response, error)
	Replace(ctx context.Context, fragments []corpus.Fragment) (*corpus.Snapshot, error)
	Snapshot() *corpus.Snapshot
	Capability() rag.Capability
	SavedAt(ctx context.Context) (time.Time, error)
}

// documentLoader is the part of *ingestion.Pipeline used by POST /api/ingest.
type documentLoader interface {
	Ingest(ctx context.Context, sources []string, progress func(msg string)) ([]corpus.Fragment, error)
	ChunkDocuments(docs []ingestion.Document, progress func(msg string)) []corpus.Fragment
}

// Server is the HTTP server that exposes the question-answering agent.
type Server struct {
	// agent answers questions and owns the corpus.
	agent questionAnswerer
	// loader turns ingest requests into fragments.
	loader documentLoader
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// TopK overrides the number of ranked fragments. Optional.
	TopK int `json:"top_k,omitempty"`
}

// fragmentResponse is one ranked fragment in an ask response. Score is null
// when the ranker produced a non-finite value, which JSON cannot carry.
type fragmentResponse struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Score  *float64 `json:"score"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the generated answer, or a descriptive error message when
	// generation failed.
	Answer string `json:"answer"`
	// Sources lists the distinct sources used as context.
	Sources []string `json:"sources"`
	// Fragments are the ranked fragments, highest score first.
	Fragments []fragmentResponse `json:"fragments"`
	// Capability is "semantic" or "keyword".
	Capability string `json:"capability"`
	// SnapshotID identifies the corpus generation that was searched.
	SnapshotID string `json:"snapshot_id"`
	// Failure is the generation failure reason, empty on success.
	Failure string `json:"failure,omitempty"`
}

// inlineDocument is a document supplied directly in an ingest request.
type inlineDocument struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// ingestRequest is the JSON body for POST /api/ingest. The resulting
// fragments replace the corpus wholesale.
type ingestRequest struct {
	// Sources are URLs (or server-local paths when allowed) to load.
	Sources []string `json:"sources,omitempty"`
	// Documents are inline documents chunked as-is.
	Documents []inlineDocument `json:"documents,omitempty"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Fragments  int    `json:"fragments"`
	Sources    int    `json:"sources"`
}

// corpusResponse is the JSON response for GET /api/corpus.
type corpusResponse struct {
	SnapshotID string               `json:"snapshot_id"`
	CreatedAt  time.Time            `json:"created_at"`
	SavedAt    *time.Time           `json:"saved_at"`
	Fragments  int                  `json:"fragments"`
	Sources    []corpus.SourceCount `json:"sources"`
	Capability string               `json:"capability"`
}
