package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/54b3r/docqa-go/internal/corpus"
)

// JSONStore keeps the corpus in a single JSON file holding a flat array of
// {"text", "source"} records.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore returns a JSONStore for path. The file is created on the
// first Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load implements FragmentStore.
func (s *JSONStore) Load(_ context.Context) ([]corpus.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []corpus.Fragment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	var frags []corpus.Fragment
	if err := json.Unmarshal(data, &frags); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	if err := corpus.Validate(frags); err != nil {
		return nil, fmt.Errorf("store: %s: %w", s.path, err)
	}
	if frags == nil {
		frags = []corpus.Fragment{}
	}
	return frags, nil
}

// Save implements FragmentStore. The file is replaced atomically via a
// temporary file in the same directory.
func (s *JSONStore) Save(_ context.Context, fragments []corpus.Fragment) error {
	if fragments == nil {
		fragments = []corpus.Fragment{}
	}
	data, err := json.MarshalIndent(fragments, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}
	return nil
}

// SavedAt implements FragmentStore using the file's modification time.
func (s *JSONStore) SavedAt(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: stat %s: %w", s.path, err)
	}
	return info.ModTime(), nil
}

// Ping implements FragmentStore by checking the parent directory exists.
func (s *JSONStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store: %s is not a directory", dir)
	}
	return nil
}

// Close implements FragmentStore. It is a no-op.
func (s *JSONStore) Close() error { return nil }
