// Package postgres provides a PostgreSQL-backed journal store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cascade-http/cascade/internal/journal"
)

// Store is a PostgreSQL implementation of journal.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ journal.Store = (*Store)(nil)

// New connects to dsn, verifies the connection, and initializes the
// schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status INTEGER,
		outcome TEXT NOT NULL,
		step_number INTEGER,
		error TEXT,
		duration_ns BIGINT,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (s *Store) Save(ctx context.Context, e journal.Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO requests (id, request_id, method, path, status, outcome, step_number, error, duration_ns, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, request_id, method, path, status, outcome, step_number, error, duration_ns, created_at
		 FROM requests ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
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

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
