package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/docqa-go/internal/corpus"
	"github.com/54b3r/docqa-go/internal/rag"
)

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// the raw URL path.
const labelHandler = "handler"

// Outcome label values for ask and ingest requests. Generation failures use
// the answer.Reason string as their outcome.
const (
	outcomeOK          = "ok"
	outcomeNoDocuments = "no_documents"
	outcomeError       = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created per Server so tests can inject a fresh
// prometheus.Registry.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests by outcome.
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records ranking plus generation latency.
	askDurationSeconds *prometheus.HistogramVec

	// ingestRequestsTotal counts /api/ingest requests by outcome.
	ingestRequestsTotal *prometheus.CounterVec

	// retrievalCapability is 1 for the active strategy and 0 for the other.
	retrievalCapability *prometheus.GaugeVec

	// corpusFragments is the fragment count of the current snapshot.
	corpusFragments prometheus.Gauge

	// corpusSources is the distinct source count of the current snapshot.
	corpusSources prometheus.Gauge

	// rateLimitedTotal counts requests rejected with 429.
	rateLimitedTotal prometheus.Counter

	// httpRequestsTotal counts all instrumented HTTP requests.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all instrumented requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Duration of /api/ask requests including ranking and answer generation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),

		ingestRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of /api/ingest requests, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalCapability: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "capability",
			Help:      "Retrieval strategy resolved at startup: 1 for the active capability, 0 otherwise.",
		}, []string{"capability"}),

		corpusFragments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "corpus",
			Name:      "fragments",
			Help:      "Number of fragments in the current corpus snapshot.",
		}),

		corpusSources: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "corpus",
			Name:      "sources",
			Help:      "Number of distinct sources in the current corpus snapshot.",
		}),

		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-IP rate limiter.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// setCapability marks c as the active retrieval capability.
func (m *serverMetrics) setCapability(c rag.Capability) {
	for _, each := range []rag.Capability{rag.CapabilityKeyword, rag.CapabilitySemantic} {
		v := 0.0
		if each == c {
			v = 1
		}
		m.retrievalCapability.WithLabelValues(each.String()).Set(v)
	}
}

// observeCorpus updates the corpus gauges from snap.
func (m *serverMetrics) observeCorpus(snap *corpus.Snapshot) {
	m.corpusFragments.Set(float64(snap.Len()))
	m.corpusSources.Set(float64(len(snap.Sources())))
}

// observeAsk records one completed ask request.
func (m *serverMetrics) observeAsk(outcome string, elapsed time.Duration) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// instrument wraps h with request count and latency metrics labelled by name.
func (s *Server) instrument(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rw, r)
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
	})
}
