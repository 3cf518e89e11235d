package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ollamaTimeout covers a cold model load on the first call.
const ollamaTimeout = 60 * time.Second

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
	// Dimensions truncates vectors to this length when > 0. Only models
	// with Matryoshka training honour it.
	Dimensions int
}

// OllamaEmbedder calls POST /api/embed on an Ollama server. Inputs longer
// than the model's context are truncated server side instead of failing the
// whole batch.
type OllamaEmbedder struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// NewOllamaEmbedder constructs an OllamaEmbedder from cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint:   strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: ollamaTimeout},
	}
}

type ollamaEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Truncate   bool     `json:"truncate"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := ollamaEmbedRequest{
		Model:      e.model,
		Input:      texts,
		Truncate:   true,
		Dimensions: e.dimensions,
	}
	var resp ollamaEmbedResponse
	if err := postJSON(ctx, e.client, "ollama embedder", e.endpoint, nil, req, &resp,
		func() string { return resp.Error }); err != nil {
		return nil, err
	}

	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), got)
	}
	return resp.Embeddings, nil
}
