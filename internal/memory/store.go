// Package memory is the persistent knowledge memory of smartflow.
//
// Entries live in SQLite with an FTS5 index so the memory knowledge
// adapter can run full-text queries, and finished orchestration runs can
// be recorded under a stable topic key and found again by later runs.
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("memory: entry not found")

// ─── Types ───────────────────────────────────────────────────────────────────

// Entry is a single piece of remembered knowledge: a run summary, a
// decision, a pattern or any note worth finding again.
type Entry struct {
	ID             int64   `json:"id"`
	Kind           string  `json:"kind"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	Project        string  `json:"project,omitempty"`
	Source         string  `json:"source,omitempty"`
	TopicKey       *string `json:"topic_key,omitempty"`
	RevisionCount  int     `json:"revision_count"`
	DuplicateCount int     `json:"duplicate_count"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// SearchResult embeds an Entry with its FTS5 rank (lower is better).
type SearchResult struct {
	Entry
	Rank float64 `json:"rank"`
}

// AddParams holds the input for Add.
type AddParams struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Project  string `json:"project,omitempty"`
	Source   string `json:"source,omitempty"`
	TopicKey string `json:"topic_key,omitempty"`
}

// SearchOptions filters a Search.
type SearchOptions struct {
	Kind    string
	Project string
	Limit   int
	// MatchAny joins query terms with OR instead of the FTS5 default AND.
	MatchAny bool
}

// Stats holds aggregate memory statistics.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	Projects     []string       `json:"projects"`
	ByKind       map[string]int `json:"by_kind"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	DataDir          string
	MaxContentLength int
	MaxSearchResults int
	DedupeWindow     time.Duration
}

// DefaultConfig returns the default configuration rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		MaxContentLength: 4000,
		MaxSearchResults: 50,
		DedupeWindow:     15 * time.Minute,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the knowledge memory backed by SQLite + FTS5. It is safe for
// concurrent use; database/sql pools the connections and SQLite's busy
// timeout serializes writers.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates the data directory if needed, opens SQLite in WAL mode and
// runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 4000
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 50
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "memory.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			kind            TEXT    NOT NULL,
			title           TEXT    NOT NULL,
			content         TEXT    NOT NULL,
			project         TEXT    NOT NULL DEFAULT '',
			source          TEXT    NOT NULL DEFAULT '',
			topic_key       TEXT,
			normalized_hash TEXT,
			revision_count  INTEGER NOT NULL DEFAULT 1,
			duplicate_count INTEGER NOT NULL DEFAULT 1,
			created_at      TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at      TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_entries_kind    ON entries(kind);
		CREATE INDEX IF NOT EXISTS idx_entries_project ON entries(project);
		CREATE INDEX IF NOT EXISTS idx_entries_topic   ON entries(topic_key, project);
		CREATE INDEX IF NOT EXISTS idx_entries_updated ON entries(updated_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			title,
			content,
			kind,
			project,
			content='entries',
			content_rowid='id'
		);

		CREATE TRIGGER IF NOT EXISTS entries_fts_insert AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, title, content, kind, project)
			VALUES (new.id, new.title, new.content, new.kind, new.project);
		END;

		CREATE TRIGGER IF NOT EXISTS entries_fts_delete AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, title, content, kind, project)
			VALUES ('delete', old.id, old.title, old.content, old.kind, old.project);
		END;

		CREATE TRIGGER IF NOT EXISTS entries_fts_update AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, title, content, kind, project)
			VALUES ('delete', old.id, old.title, old.content, old.kind, old.project);
			INSERT INTO entries_fts(rowid, title, content, kind, project)
			VALUES (new.id, new.title, new.content, new.kind, new.project);
		END;
	`
	_, err := s.db.Exec(schema)
	return err
}
