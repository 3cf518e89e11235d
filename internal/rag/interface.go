// Package rag implements relevance ranking for retrieval-augmented
// generation: a lexical keyword scorer, a dense-embedding semantic scorer,
// the process-lifetime capability that chooses between them, and the Ranker
// that selects the top-k fragments for a question.
//
// Concrete embedding backends live in internal/embedder and satisfy the
// Embedder interface defined here, so this package never depends on a
// specific model provider.
package rag

import (
	"context"
)

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer assigns a relevance score to each text for one question.
// Implementations must be safe to call from multiple goroutines.
type Scorer interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Score returns one score per text, parallel to texts. Higher is more
	// relevant; the range is strategy specific.
	Score(ctx context.Context, question string, texts []string) ([]float64, error)
}
