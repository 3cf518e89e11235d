package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/54b3r/docqa-go/internal/answer"
	"github.com/54b3r/docqa-go/internal/corpus"
	"github.com/54b3r/docqa-go/internal/rag"
)

// fakeComposer records calls and returns a canned Result.
type fakeComposer struct {
	mu     sync.Mutex
	calls  int
	ranked []corpus.ScoredFragment
	result answer.Result
}

func (f *fakeComposer) Compose(_ context.Context, _ string, ranked []corpus.ScoredFragment) answer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ranked = ranked
	return f.result
}

func (f *fakeComposer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore is an in-memory store.FragmentStore.
type fakeStore struct {
	mu      sync.Mutex
	saved   []corpus.Fragment
	savedAt time.Time
	loadErr error
	saveErr error
}

func (s *fakeStore) Load(context.Context) ([]corpus.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, s.loadErr
}

func (s *fakeStore) Save(_ context.Context, f []corpus.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append([]corpus.Fragment(nil), f...)
	s.savedAt = time.Unix(1700000000, 0)
	return nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) SavedAt(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedAt, nil
}
func (s *fakeStore) Close() error               { return nil }

var budgetCorpus = []corpus.Fragment{
	{Text: "The budget is $500.", Source: "a"},
	{Text: "Unrelated text here.", Source: "b"},
}

func keywordRanker() *rag.Ranker {
	return rag.NewWithScorer(rag.CapabilityKeyword, rag.KeywordScorer{})
}

func newTestAgent(t *testing.T, frags []corpus.Fragment, comp Composer, st *fakeStore) *Agent {
	t.Helper()
	h, err := corpus.NewHandle(frags)
	if err != nil {
		t.Fatalf("NewHandle() error = %v", err)
	}
	cfg := &Config{Corpus: h, Ranker: keywordRanker(), Composer: comp}
	if st != nil {
		cfg.Store = st
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_RequiresRanker(t *testing.T) {
	t.Parallel()

	if _, err := New(&Config{}); err == nil {
		t.Error("expected error for nil ranker")
	}
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestAsk_Success(t *testing.T) {
	t.Parallel()

	comp := &fakeComposer{result: answer.Result{Answer: "It is $500 (a).", Sources: []string{"a"}}}
	a := newTestAgent(t, budgetCorpus, comp, nil)

	resp, err := a.Ask(context.Background(), "What is the budget?", 1)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != "It is $500 (a)." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "a" {
		t.Errorf("Sources = %v, want [a]", resp.Sources)
	}
	if len(resp.Fragments) != 1 || resp.Fragments[0].Source != "a" {
		t.Errorf("Fragments = %+v, want the budget fragment", resp.Fragments)
	}
	if resp.Capability != rag.CapabilityKeyword {
		t.Errorf("Capability = %v, want keyword", resp.Capability)
	}
	if resp.SnapshotID == "" || resp.SnapshotID != a.Snapshot().ID() {
		t.Errorf("SnapshotID = %q, want %q", resp.SnapshotID, a.Snapshot().ID())
	}
	if resp.Failure != nil {
		t.Errorf("Failure = %v, want nil", resp.Failure)
	}
	if len(comp.ranked) != 1 {
		t.Errorf("composer received %d fragments, want 1", len(comp.ranked))
	}
}

func TestAsk_DefaultTopK(t *testing.T) {
	t.Parallel()

	frags := []corpus.Fragment{
		{Text: "one budget", Source: "1"},
		{Text: "two budget", Source: "2"},
		{Text: "three budget", Source: "3"},
		{Text: "four budget", Source: "4"},
	}
	comp := &fakeComposer{result: answer.Result{Answer: "ok", Sources: []string{}}}
	a := newTestAgent(t, frags, comp, nil)

	resp, err := a.Ask(context.Background(), "budget", 0)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(resp.Fragments) != rag.DefaultTopK {
		t.Errorf("got %d fragments, want %d", len(resp.Fragments), rag.DefaultTopK)
	}
}

func TestAsk_EmptyCorpusSkipsComposer(t *testing.T) {
	t.Parallel()

	comp := &fakeComposer{result: answer.Result{Answer: "should not be used"}}
	a := newTestAgent(t, nil, comp, nil)

	resp, err := a.Ask(context.Background(), "anything?", 3)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != NoDocumentsAnswer {
		t.Errorf("Answer = %q, want %q", resp.Answer, NoDocumentsAnswer)
	}
	if len(resp.Fragments) != 0 || resp.Sources == nil || len(resp.Sources) != 0 {
		t.Errorf("expected empty fragments and non-nil empty sources, got %+v", resp)
	}
	if comp.callCount() != 0 {
		t.Errorf("composer called %d times, want 0", comp.callCount())
	}
}

func TestAsk_GenerationFailureIsNotAnError(t *testing.T) {
	t.Parallel()

	failure := &answer.Failure{Reason: answer.ReasonTimeout, Err: context.DeadlineExceeded}
	comp := &fakeComposer{result: answer.Result{Answer: "Error querying language model: timeout", Failure: failure}}
	a := newTestAgent(t, budgetCorpus, comp, nil)

	resp, err := a.Ask(context.Background(), "What is the budget?", 1)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Failure == nil || resp.Failure.Reason != answer.ReasonTimeout {
		t.Errorf("Failure = %v, want timeout", resp.Failure)
	}
	if resp.Sources == nil || len(resp.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", resp.Sources)
	}
	if !strings.HasPrefix(resp.Answer, "Error querying language model") {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestAsk_Errors(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, budgetCorpus, &fakeComposer{}, nil)
	if _, err := a.Ask(context.Background(), "   ", 1); err == nil {
		t.Error("expected error for blank question")
	}

	noComposer := newTestAgent(t, budgetCorpus, nil, nil)
	if _, err := noComposer.Ask(context.Background(), "budget", 1); err == nil {
		t.Error("expected error when no composer is configured")
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, budgetCorpus, nil, nil)
	ranked, snap, err := a.Search(context.Background(), "What is the budget?", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if snap.Len() != 2 {
		t.Errorf("snapshot len = %d, want 2", snap.Len())
	}
	if len(ranked) != 2 || ranked[0].Source != "a" || ranked[0].Score <= ranked[1].Score {
		t.Errorf("unexpected ranking: %+v", ranked)
	}
}

func TestReplace_PersistsAndSwaps(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	a := newTestAgent(t, nil, nil, st)
	before := a.Snapshot()

	snap, err := a.Replace(context.Background(), budgetCorpus)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if snap.Len() != 2 || a.Snapshot() != snap {
		t.Errorf("snapshot not installed: %+v", snap)
	}
	if before.Len() != 0 {
		t.Errorf("previous snapshot mutated: len = %d", before.Len())
	}
	if len(st.saved) != 2 {
		t.Errorf("store saved %d fragments, want 2", len(st.saved))
	}
}

func TestSavedAt(t *testing.T) {
	t.Parallel()

	if at, err := newTestAgent(t, nil, nil, nil).SavedAt(context.Background()); err != nil || !at.IsZero() {
		t.Errorf("SavedAt() without store = %v, %v; want zero", at, err)
	}

	st := &fakeStore{}
	a := newTestAgent(t, nil, nil, st)
	if at, _ := a.SavedAt(context.Background()); !at.IsZero() {
		t.Errorf("SavedAt() before save = %v, want zero", at)
	}
	if _, err := a.Replace(context.Background(), budgetCorpus); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if at, err := a.SavedAt(context.Background()); err != nil || !at.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("SavedAt() after save = %v, %v", at, err)
	}
}

func TestReplace_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid fragment", func(t *testing.T) {
		t.Parallel()
		st := &fakeStore{}
		a := newTestAgent(t, budgetCorpus, nil, st)
		_, err := a.Replace(context.Background(), []corpus.Fragment{{Text: "", Source: "x"}})
		var dataErr *corpus.DataError
		if !errors.As(err, &dataErr) {
			t.Fatalf("error = %v, want *corpus.DataError", err)
		}
		if a.Snapshot().Len() != 2 || st.saved != nil {
			t.Error("corpus or store changed on invalid input")
		}
	})

	t.Run("store failure keeps current snapshot", func(t *testing.T) {
		t.Parallel()
		st := &fakeStore{saveErr: errors.New("disk full")}
		a := newTestAgent(t, budgetCorpus, nil, st)
		prev := a.Snapshot()
		_, err := a.Replace(context.Background(), []corpus.Fragment{{Text: "new", Source: "n"}})
		if err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Fatalf("error = %v, want disk full", err)
		}
		if a.Snapshot() != prev {
			t.Error("snapshot replaced despite store failure")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	st := &fakeStore{saved: budgetCorpus}
	a := newTestAgent(t, nil, nil, st)

	snap, err := a.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Len() != 2 || a.Snapshot().Len() != 2 {
		t.Errorf("loaded %d fragments, want 2", snap.Len())
	}

	failing := newTestAgent(t, nil, nil, &fakeStore{loadErr: errors.New("corrupt")})
	if _, err := failing.Load(context.Background()); err == nil {
		t.Error("expected error from failing store")
	}

	memOnly := newTestAgent(t, budgetCorpus, nil, nil)
	snap, err = memOnly.Load(context.Background())
	if err != nil || snap.Len() != 2 {
		t.Errorf("Load() without store = (%v, %v), want current snapshot", snap, err)
	}
}
