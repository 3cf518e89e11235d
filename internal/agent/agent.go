// Package agent wires the corpus, the ranker and the answer composer into
// the question-answering service used by both the CLI and the HTTP server.
// Every request reads exactly one corpus snapshot; ingestion replaces the
// corpus wholesale and persists it through the fragment store.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/answer"
	"github.com/54b3r/docqa-go/internal/corpus"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/store"
)

// NoDocumentsAnswer is returned by Ask when the corpus is empty.
const NoDocumentsAnswer = "No documents have been ingested yet. Ingest documents before asking questions."

// Composer produces an answer from a question and ranked fragments.
// *answer.Composer satisfies it.
type Composer interface {
	Compose(ctx context.Context, question string, ranked []corpus.ScoredFragment) answer.Result
}

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// Corpus is the replaceable corpus handle. A new empty handle is used
	// if nil.
	Corpus *corpus.Handle

	// Ranker selects the top-K fragments. Required.
	Ranker *rag.Ranker

	// Composer generates answers. May be nil for search-only use, in which
	// case Ask returns an error.
	Composer Composer

	// Store persists the corpus on Replace. May be nil, in which case the
	// corpus lives in memory only.
	Store store.FragmentStore

	// TopK is the default number of fragments ranked per question.
	// Defaults to rag.DefaultTopK if zero.
	TopK int
}

// Agent answers questions against the current corpus snapshot.
type Agent struct {
	corpus   *corpus.Handle
	ranker   *rag.Ranker
	composer Composer
	store    store.FragmentStore
	topK     int
}

// Response is the outcome of one Ask call.
type Response struct {
	// Answer is always printable, including on generation failure.
	Answer string
	// Sources lists the distinct sources cited as context.
	Sources []string
	// Fragments are the ranked fragments, descending by score.
	Fragments []corpus.ScoredFragment
	// Capability is the retrieval strategy that ranked the fragments.
	Capability rag.Capability
	// SnapshotID identifies the corpus snapshot the question was run against.
	SnapshotID string
	// Failure is non-nil when answer generation failed.
	Failure *answer.Failure
}

// New constructs an Agent from the provided Config.
func New(cfg *Config) (*Agent, error) {
	if cfg == nil || cfg.Ranker == nil {
		return nil, fmt.Errorf("agent: Ranker must not be nil")
	}

	handle := cfg.Corpus
	if handle == nil {
		var err error
		handle, err = corpus.NewHandle(nil)
		if err != nil {
			return nil, fmt.Errorf("agent: failed to create corpus handle: %w", err)
		}
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}

	return &Agent{
		corpus:   handle,
		ranker:   cfg.Ranker,
		composer: cfg.Composer,
		store:    cfg.Store,
		topK:     topK,
	}, nil
}

// Capability reports the retrieval strategy resolved at startup.
func (a *Agent) Capability() rag.Capability { return a.ranker.Capability() }

// Snapshot returns the current corpus snapshot.
func (a *Agent) Snapshot() *corpus.Snapshot { return a.corpus.Current() }

// SavedAt reports when the corpus was last persisted. It returns the zero
// time when no store is configured or nothing has been saved yet.
func (a *Agent) SavedAt(ctx context.Context) (time.Time, error) {
	if a.store == nil {
		return time.Time{}, nil
	}
	at, err := a.store.SavedAt(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("agent: failed to read save time: %w", err)
	}
	return at, nil
}

// Search ranks the current snapshot against question without generating an
// answer. topK <= 0 selects the configured default.
func (a *Agent) Search(ctx context.Context, question string, topK int) ([]corpus.ScoredFragment, *corpus.Snapshot, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, fmt.Errorf("agent: question must not be empty")
	}
	if topK <= 0 {
		topK = a.topK
	}

	snap := a.corpus.Current()
	ranked, err := a.ranker.TopK(ctx, question, snap.Fragments(), topK)
	if err != nil {
		return nil, snap, fmt.Errorf("agent: ranking failed: %w", err)
	}
	return ranked, snap, nil
}

// Ask ranks the current snapshot against question and composes an answer
// from the ranked fragments. When the corpus is empty the composer is not
// called and NoDocumentsAnswer is returned. Generation failures are reported
// in Response.Failure, not as an error.
func (a *Agent) Ask(ctx context.Context, question string, topK int) (*Response, error) {
	if a.composer == nil {
		return nil, fmt.Errorf("agent: no composer configured")
	}

	ranked, snap, err := a.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Fragments:  ranked,
		Capability: a.ranker.Capability(),
		SnapshotID: snap.ID(),
		Sources:    []string{},
	}

	if len(ranked) == 0 {
		logging.FromContext(ctx).Info("ask: corpus is empty, skipping generation",
			slog.String("snapshot_id", snap.ID()),
		)
		resp.Answer = NoDocumentsAnswer
		return resp, nil
	}

	result := a.composer.Compose(ctx, strings.TrimSpace(question), ranked)
	resp.Answer = result.Answer
	resp.Failure = result.Failure
	if result.Sources != nil {
		resp.Sources = result.Sources
	}
	return resp, nil
}

// Replace validates fragments, persists them when a store is configured and
// swaps them in as the new corpus snapshot. The in-memory corpus is only
// replaced once persistence has succeeded.
func (a *Agent) Replace(ctx context.Context, fragments []corpus.Fragment) (*corpus.Snapshot, error) {
	if err := corpus.Validate(fragments); err != nil {
		return nil, fmt.Errorf("agent: invalid corpus: %w", err)
	}

	if a.store != nil {
		if err := a.store.Save(ctx, fragments); err != nil {
			return nil, fmt.Errorf("agent: failed to persist corpus: %w", err)
		}
	}

	snap, err := a.corpus.Replace(fragments)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to replace corpus: %w", err)
	}

	logging.FromContext(ctx).Info("corpus replaced",
		slog.String("snapshot_id", snap.ID()),
		slog.Int("fragments", snap.Len()),
		slog.Int("sources", len(snap.Sources())),
	)
	return snap, nil
}

// Load reads the persisted corpus from the store into memory. It is a no-op
// returning the current snapshot when no store is configured.
func (a *Agent) Load(ctx context.Context) (*corpus.Snapshot, error) {
	if a.store == nil {
		return a.corpus.Current(), nil
	}

	fragments, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to load corpus: %w", err)
	}

	snap, err := a.corpus.Replace(fragments)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to replace corpus: %w", err)
	}
	return snap, nil
}
