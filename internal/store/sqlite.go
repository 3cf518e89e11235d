package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/docqa-go/internal/corpus"
)

// SQLiteStore is a FragmentStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and runs
// the schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS fragments (
    position   INTEGER PRIMARY KEY,
    text       TEXT    NOT NULL,
    source     TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS corpus_meta (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    saved_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Load implements FragmentStore.
func (s *SQLiteStore) Load(ctx context.Context) ([]corpus.Fragment, error) {
	const q = `SELECT text, source FROM fragments ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()

	frags := []corpus.Fragment{}
	for rows.Next() {
		var f corpus.Fragment
		if err := rows.Scan(&f.Text, &f.Source); err != nil {
			return nil, fmt.Errorf("store: load scan: %w", err)
		}
		frags = append(frags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load rows: %w", err)
	}
	if err := corpus.Validate(frags); err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	return frags, nil
}

// Save implements FragmentStore inside a single transaction, so readers
// see either the old corpus or the new one.
func (s *SQLiteStore) Save(ctx context.Context, fragments []corpus.Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments`); err != nil {
		return fmt.Errorf("store: save clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fragments (position, text, source) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: save prepare: %w", err)
	}
	defer stmt.Close()

	for i, f := range fragments {
		if _, err := stmt.ExecContext(ctx, i, f.Text, f.Source); err != nil {
			return fmt.Errorf("store: save fragment %d: %w", i, err)
		}
	}

	const meta = `INSERT INTO corpus_meta (id, saved_at) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at`
	if _, err := tx.ExecContext(ctx, meta, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save commit: %w", err)
	}
	return nil
}

// SavedAt implements FragmentStore using the corpus_meta row written by Save.
func (s *SQLiteStore) SavedAt(ctx context.Context) (time.Time, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM corpus_meta WHERE id = 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: saved_at: %w", err)
	}
	return time.Unix(ts, 0), nil
}

// Ping implements FragmentStore.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
