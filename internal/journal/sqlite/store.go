// Package sqlite provides a SQLite-backed journal store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cascade-http/cascade/internal/journal"
)

// Store is a SQLite implementation of journal.Store.
type Store struct {
	db *sql.DB
}

var _ journal.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status INTEGER,
		outcome TEXT NOT NULL,
		step_number INTEGER,
		error TEXT,
		duration_ns INTEGER,
		created_at TIMESTAMP NOT NULL
	)`)
	return err
}

func (s *Store) Save(ctx context.Context, e journal.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, request_id, method, path, status, outcome, step_number, error, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Method, e.Path, e.Status, e.Outcome, e.StepNumber, e.Error, e.Duration.Nanoseconds(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, method, path, status, outcome, step_number, error, duration_ns, created_at
		 FROM requests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var e journal.Entry
		var durationNS int64
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Method, &e.Path, &e.Status, &e.Outcome, &e.StepNumber, &e.Error, &durationNS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		e.Duration = time.Duration(durationNS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
