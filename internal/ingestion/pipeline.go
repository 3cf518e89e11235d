// Package ingestion loads documents from local files, directories and
// HTTP(S) URLs, extracts their text and chunks it into corpus fragments.
// This pipeline is invoked by `docqa ingest` and POST /api/ingest.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/corpus"
)

// Document is one loaded source: its identifier and extracted plain text.
type Document struct {
	// Source is the identifier stamped on every fragment of this document:
	// the file name, the path relative to an ingested directory, or the URL.
	Source string
	// Text is the extracted plain text.
	Text string
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the target fragment size in words.
	// Defaults to chunker.DefaultTargetSize if zero.
	ChunkSize int

	// HTTPTimeout is the timeout for each URL fetch.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// MaxBytes caps the size of a single document. Defaults to 32 MiB.
	MaxBytes int64

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the load → extract → chunk flow for a set of sources.
// It is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline, filling defaults into a copy of cfg.
func NewPipeline(cfg *Config) *Pipeline {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultTargetSize
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 32 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "docqa/1.0 (document ingestion)"
	}
	return &Pipeline{
		cfg:        c,
		httpClient: &http.Client{Timeout: c.HTTPTimeout},
	}
}

// Ingest loads every source in order and returns all fragments, grouped by
// document in source order. Documents with no text contribute nothing.
// It stops at the first source that cannot be loaded. progress, when
// non-nil, receives one line per step.
func (p *Pipeline) Ingest(ctx context.Context, sources []string, progress func(msg string)) ([]corpus.Fragment, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var out []corpus.Fragment
	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src))

		docs, err := p.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("ingestion: %s: %w", src, err)
		}
		out = append(out, p.ChunkDocuments(docs, progress)...)
	}
	return out, nil
}

// ChunkDocuments chunks already-loaded documents in order using the
// configured chunk size. progress may be nil.
func (p *Pipeline) ChunkDocuments(docs []Document, progress func(msg string)) []corpus.Fragment {
	if progress == nil {
		progress = func(string) {}
	}

	var out []corpus.Fragment
	for _, doc := range docs {
		frags := chunker.Chunk(doc.Text, doc.Source, p.cfg.ChunkSize)
		if len(frags) == 0 {
			progress(fmt.Sprintf("skipped %s: no text", doc.Source))
			continue
		}
		progress(fmt.Sprintf("chunked %s into %d fragments", doc.Source, len(frags)))
		out = append(out, frags...)
	}
	return out
}

// IsURL reports whether src is fetched over HTTP rather than read from disk.
func IsURL(src string) bool { return isURL(strings.TrimSpace(src)) }

// Load resolves one source into documents: a URL yields one document, a
// file one, and a directory every supported file beneath it.
func (p *Pipeline) Load(ctx context.Context, src string) ([]Document, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty source")
	}
	if isURL(src) {
		doc, err := p.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}
	return p.loadPath(ctx, src)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// fetch retrieves a URL and extracts its text according to the response
// content type.
func (p *Pipeline) fetch(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html;q=0.9, application/pdf;q=0.9, */*;q=0.1")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := readLimited(resp.Body, p.cfg.MaxBytes)
	if err != nil {
		return Document{}, err
	}

	kind := kindFromContentType(resp.Header.Get("Content-Type"))
	if kind == kindUnknown {
		kind = kindFromName(url)
	}
	if kind == kindUnknown {
		kind = kindText
	}

	text, err := extract(kind, body, resp.Request.URL)
	if err != nil {
		return Document{}, err
	}
	return Document{Source: url, Text: text}, nil
}

// readLimited reads r fully, failing if it exceeds limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("document exceeds %d bytes", limit)
	}
	return body, nil
}
