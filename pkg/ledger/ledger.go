// Package ledger persists one row per completed proxy request to SQLite,
// for offline usage reporting.
package ledger

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one recorded request.
type Entry struct {
	ID               string
	CreatedAt        time.Time
	Backend          string
	Model            string
	Status           string
	LatencyMs        int64
	PromptTokens     int
	CompletionTokens int
	Error            string
}

// BackendSummary is the per-backend rollup over all recorded requests.
type BackendSummary struct {
	Backend          string
	Requests         int64
	Errors           int64
	PromptTokens     int64
	CompletionTokens int64
	AvgLatencyMs     float64
}

// Store is a SQLite-backed request ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at the given path.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("ledger db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			backend TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);`,
		"CREATE INDEX IF NOT EXISTS idx_requests_backend ON requests(backend, created_at_utc);",
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts one request row. A missing ID or timestamp is filled in.
func (s *Store) Record(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusOK
	}

	_, err := s.db.Exec(
		`INSERT INTO requests (id, created_at_utc, backend, model, status, latency_ms, prompt_tokens, completion_tokens, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UTC().Format(time.RFC3339), e.Backend, e.Model, e.Status,
		e.LatencyMs, e.PromptTokens, e.CompletionTokens, strings.TrimSpace(e.Error),
	)
	return err
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(`SELECT id, created_at_utc, backend, model, status, latency_ms, prompt_tokens, completion_tokens, error
		FROM requests
		ORDER BY created_at_utc DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &created, &e.Backend, &e.Model, &e.Status, &e.LatencyMs, &e.PromptTokens, &e.CompletionTokens, &e.Error); err != nil {
			return nil, err
		}
		createdAt, _ := time.Parse(time.RFC3339, created)
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Summary returns the per-backend rollup, sorted by backend name.
func (s *Store) Summary() ([]BackendSummary, error) {
	rows, err := s.db.Query(`SELECT backend,
			COUNT(*),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM requests
		GROUP BY backend
		ORDER BY backend`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]BackendSummary, 0)
	for rows.Next() {
		var b BackendSummary
		if err := rows.Scan(&b.Backend, &b.Requests, &b.Errors, &b.PromptTokens, &b.CompletionTokens, &b.AvgLatencyMs); err != nil {
			return nil, err
		}
		summaries = append(summaries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}
