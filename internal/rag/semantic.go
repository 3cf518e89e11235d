package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// SemanticScorer scores fragments by cosine similarity between the question
// embedding and each fragment embedding. The question and the fragments are
// always embedded by the same Embedder.
type SemanticScorer struct {
	embedder Embedder
}

// NewSemanticScorer constructs a SemanticScorer around embedder.
func NewSemanticScorer(embedder Embedder) (*SemanticScorer, error) {
	if embedder == nil {
		return nil, errors.New("rag: semantic scorer requires an embedder")
	}
	return &SemanticScorer{embedder: embedder}, nil
}

// Name implements Scorer.
func (s *SemanticScorer) Name() string { return CapabilitySemantic.String() }

// Score implements Scorer. The question is embedded together with the texts
// in one batch; similarity is computed pair by pair so the result for a text
// does not depend on what else is in the batch.
func (s *SemanticScorer) Score(ctx context.Context, question string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	batch := make([]string, 0, len(texts)+1)
	batch = append(batch, question)
	batch = append(batch, texts...)

	vecs, err := s.embedder.Embed(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question and fragments: %w", err)
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for %d inputs", len(vecs), len(batch))
	}

	q := vecs[0]
	out := make([]float64, len(texts))
	for i, v := range vecs[1:] {
		sim, err := Cosine(q, v)
		if err != nil {
			return nil, fmt.Errorf("rag: fragment %d: %w", i, err)
		}
		out[i] = sim
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. A zero vector
// has similarity 0 with everything. Vectors of different length are an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("rag: dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
