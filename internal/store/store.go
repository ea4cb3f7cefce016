package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for reach run reports.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return s.SetMetadata("schema_version", schemaVersion)
}

const schemaVersion = "1"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
  id               TEXT PRIMARY KEY,
  root             TEXT NOT NULL,
  output           TEXT,
  granularity      TEXT,
  status           TEXT NOT NULL,
  error            TEXT,
  started          TIMESTAMP NOT NULL,
  finished         TIMESTAMP NOT NULL,
  file_count       INTEGER NOT NULL DEFAULT 0,
  query_count      INTEGER NOT NULL DEFAULT 0,
  match_count      INTEGER NOT NULL DEFAULT 0,
  unresolved_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_files (
  id          INTEGER PRIMARY KEY,
  run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  path        TEXT NOT NULL,
  hash        TEXT,
  match_count INTEGER NOT NULL DEFAULT 0,
  UNIQUE(run_id, path)
);

CREATE TABLE IF NOT EXISTS run_queries (
  id        INTEGER PRIMARY KEY,
  run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  seq       INTEGER NOT NULL,
  name      TEXT NOT NULL,
  symbol_id INTEGER,
  origin    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_matches (
  id         INTEGER PRIMARY KEY,
  run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  path       TEXT NOT NULL,
  start_byte INTEGER NOT NULL,
  end_byte   INTEGER NOT NULL,
  line       INTEGER NOT NULL,
  col        INTEGER NOT NULL,
  text       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_unresolved (
  id     INTEGER PRIMARY KEY,
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  symbol TEXT NOT NULL,
  file   TEXT NOT NULL,
  reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
CREATE INDEX IF NOT EXISTS idx_run_files_run ON run_files(run_id);
CREATE INDEX IF NOT EXISTS idx_run_queries_run ON run_queries(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_run_matches_run ON run_matches(run_id, path, start_byte);
CREATE INDEX IF NOT EXISTS idx_run_unresolved_run ON run_unresolved(run_id);
`

// GetMetadata returns the value stored under key, or "" if absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// DeleteRun removes a run and, through cascading foreign keys, its rows.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
