// Package store persists the corpus as an ordered list of {text, source}
// fragment records so it survives restarts. Two backends are provided: a
// flat JSON file, the interchange format consumed by other tools, and a
// SQLite database.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/corpus"
)

// FragmentStore loads and saves the whole corpus. Saves replace the stored
// corpus wholesale. Implementations must be safe for concurrent use.
type FragmentStore interface {
	// Load returns the stored fragments in their saved order. A store that
	// has never been saved to returns an empty slice. Malformed records are
	// reported as a *corpus.DataError.
	Load(ctx context.Context) ([]corpus.Fragment, error)
	// Save replaces the stored corpus with fragments.
	Save(ctx context.Context, fragments []corpus.Fragment) error
	// SavedAt reports when the corpus was last saved, or the zero time if
	// it never was.
	SavedAt(ctx context.Context) (time.Time, error)
	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// DefaultPath returns the default corpus location, ~/.docqa/corpus.db,
// creating the directory if needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "corpus.db"), nil
}

// Open selects a backend from the path: a ".json" suffix opens a JSONStore,
// anything else a SQLiteStore.
func Open(path string) (FragmentStore, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONStore(path), nil
	}
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
