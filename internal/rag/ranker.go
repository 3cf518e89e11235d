package rag

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/54b3r/docqa-go/internal/corpus"
)

// DefaultTopK is the number of fragments returned when the caller passes
// k <= 0.
const DefaultTopK = 3

// Ranker selects the top-k fragments for a question using the scorer bound
// to its capability. The capability is fixed at construction; there is no
// per-call retry or mixing of strategies.
type Ranker struct {
	capability Capability
	scorer     Scorer
}

// New constructs a Ranker for capability. CapabilitySemantic requires a
// non-nil embedder; CapabilityKeyword ignores it.
func New(capability Capability, embedder Embedder) (*Ranker, error) {
	switch capability {
	case CapabilityKeyword:
		return &Ranker{capability: capability, scorer: KeywordScorer{}}, nil
	case CapabilitySemantic:
		s, err := NewSemanticScorer(embedder)
		if err != nil {
			return nil, err
		}
		return &Ranker{capability: capability, scorer: s}, nil
	default:
		return nil, fmt.Errorf("rag: unsupported capability %s", capability)
	}
}

// NewWithScorer constructs a Ranker around an arbitrary scorer. It is used
// by tests and by callers that bring their own strategy.
func NewWithScorer(capability Capability, scorer Scorer) *Ranker {
	return &Ranker{capability: capability, scorer: scorer}
}

// Capability reports the strategy this Ranker was built with.
func (r *Ranker) Capability() Capability { return r.capability }

// TopK returns the min(k, len(fragments)) highest-scoring fragments in
// descending score order. Equal scores keep their original relative order.
// NaN scores sort after every number. An empty corpus yields an empty,
// non-nil result without calling the scorer. A fragment with blank text
// is reported as a *corpus.DataError.
func (r *Ranker) TopK(ctx context.Context, question string, fragments []corpus.Fragment, k int) ([]corpus.ScoredFragment, error) {
	if len(fragments) == 0 {
		return []corpus.ScoredFragment{}, nil
	}
	if err := corpus.Validate(fragments); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}
	k = min(k, len(fragments))

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	scores, err := r.scorer.Score(ctx, question, texts)
	if err != nil {
		return nil, fmt.Errorf("rag: %s scoring: %w", r.scorer.Name(), err)
	}
	if len(scores) != len(fragments) {
		return nil, fmt.Errorf("rag: %s scorer returned %d scores for %d fragments", r.scorer.Name(), len(scores), len(fragments))
	}

	scored := make([]corpus.ScoredFragment, len(fragments))
	for i, f := range fragments {
		scored[i] = corpus.ScoredFragment{Fragment: f, Score: scores[i]}
	}

	slices.SortStableFunc(scored, func(a, b corpus.ScoredFragment) int {
		return compareDesc(a.Score, b.Score)
	})
	return scored[:k:k], nil
}

// compareDesc orders higher scores first and NaN last.
func compareDesc(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(b, a)
}
