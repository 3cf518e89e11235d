// Package corpus defines the unit of retrieval (Fragment) and the process-wide
// corpus handle. A corpus is an ordered, immutable snapshot of fragments that
// is read by every request and replaced wholesale by ingestion. Snapshots are
// never mutated in place.
package corpus

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Fragment is a bounded, source-tagged slice of document text.
// The JSON shape is the persisted corpus format and must stay a flat
// {text, source} record.
type Fragment struct {
	// Text is a contiguous slice of the originating document. Never empty.
	Text string `json:"text"`

	// Source identifies the originating document (file name, URL, doc ID).
	// Stable across all fragments of the same document.
	Source string `json:"source"`
}

// ScoredFragment pairs a Fragment with the relevance score assigned by a
// scorer for one query. Higher is more relevant; the range depends on the
// scoring strategy.
type ScoredFragment struct {
	Fragment

	// Score is the relevance score for the query that produced this value.
	Score float64 `json:"score"`
}

// DataError reports a malformed fragment record. It indicates a
// corpus-construction bug rather than a runtime condition and is never
// recovered from.
type DataError struct {
	// Index is the position of the offending record in its collection.
	Index int
	// Field names the missing or invalid field ("text").
	Field string
}

// Error implements error.
func (e *DataError) Error() string {
	return fmt.Sprintf("corpus: fragment %d: missing or empty %q", e.Index, e.Field)
}

// Validate checks every fragment has non-blank text and returns a *DataError
// for the first one that does not.
func Validate(fragments []Fragment) error {
	for i, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			return &DataError{Index: i, Field: "text"}
		}
	}
	return nil
}

// Snapshot is one immutable generation of the corpus.
type Snapshot struct {
	id        string
	createdAt time.Time
	fragments []Fragment
}

// NewSnapshot validates fragments and wraps a private copy of them in a
// Snapshot. A nil or empty slice yields a valid, empty snapshot.
func NewSnapshot(fragments []Fragment) (*Snapshot, error) {
	if err := Validate(fragments); err != nil {
		return nil, err
	}
	own := make([]Fragment, len(fragments))
	copy(own, fragments)
	return &Snapshot{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		fragments: own,
	}, nil
}

// ID returns the unique identifier of this snapshot generation.
func (s *Snapshot) ID() string { return s.id }

// CreatedAt returns when the snapshot was built.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Len returns the number of fragments.
func (s *Snapshot) Len() int { return len(s.fragments) }

// Fragments returns the fragments in insertion order. The returned slice is
// shared with the snapshot and must not be modified.
func (s *Snapshot) Fragments() []Fragment { return s.fragments }

// SourceCount is the number of fragments contributed by one source.
type SourceCount struct {
	// Source is the document identifier.
	Source string `json:"source"`
	// Fragments is how many fragments carry this source.
	Fragments int `json:"fragments"`
}

// Sources returns the distinct sources in first-seen order together with
// their fragment counts.
func (s *Snapshot) Sources() []SourceCount {
	idx := make(map[string]int)
	var out []SourceCount
	for _, f := range s.fragments {
		i, ok := idx[f.Source]
		if !ok {
			i = len(out)
			idx[f.Source] = i
			out = append(out, SourceCount{Source: f.Source})
		}
		out[i].Fragments++
	}
	return out
}

// Handle is the process-wide reference to the current Snapshot. Readers
// take one snapshot per request with Current and keep using it even if a
// concurrent Replace installs a newer generation.
// The zero value holds no snapshot; Current then returns an empty one.
type Handle struct {
	current atomic.Pointer[Snapshot]
}

// NewHandle returns a Handle initialised with fragments.
func NewHandle(fragments []Fragment) (*Handle, error) {
	h := &Handle{}
	if _, err := h.Replace(fragments); err != nil {
		return nil, err
	}
	return h, nil
}

// emptySnapshot is returned by Current before the first Replace.
var emptySnapshot = &Snapshot{id: "empty"}

// Current returns the snapshot installed by the most recent Replace.
func (h *Handle) Current() *Snapshot {
	if s := h.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Replace validates fragments, builds a new snapshot and installs it,
// discarding the previous generation. On a *DataError the current snapshot
// is left untouched.
func (h *Handle) Replace(fragments []Fragment) (*Snapshot, error) {
	snap, err := NewSnapshot(fragments)
	if err != nil {
		return nil, err
	}
	h.current.Store(snap)
	return snap, nil
}
