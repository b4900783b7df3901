// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siteroast/siteroast/internal/roast"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for roast records.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RecordStore persists roast records in Postgres. Expected schema:
//
//	CREATE TABLE roasts (
//	    id UUID PRIMARY KEY,
//	    url TEXT NOT NULL,
//	    critique JSONB NOT NULL,
//	    image_url TEXT NOT NULL,
//	    visitor_id UUID,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type RecordStore struct {
	pool  pool
	table string
}

var _ roast.RecordStore = (*RecordStore)(nil)

// New creates a Postgres-backed RecordStore using the provided config.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "roasts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "roasts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Insert writes one record. It is never retried; a failure here is terminal
// for the request.
func (s *RecordStore) Insert(ctx context.Context, record roast.Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	critiqueJSON, err := json.Marshal(record.Critique)
	if err != nil {
		return fmt.Errorf("marshal critique: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, url, critique, image_url, visitor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, s.table)

	args := []any{
		record.ID,
		record.URL,
		critiqueJSON,
		record.ImageURL,
		nullable(record.VisitorID),
		record.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert roast: %w", err)
	}
	return nil
}

// Get fetches one record by ID.
func (s *RecordStore) Get(ctx context.Context, id string) (roast.Record, error) {
	query := fmt.Sprintf(`
SELECT id, url, critique, image_url, visitor_id, created_at
FROM %s WHERE id = $1`, s.table)

	record, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roast.Record{}, roast.ErrRecordNotFound
		}
		return roast.Record{}, fmt.Errorf("get roast: %w", err)
	}
	return record, nil
}

// ListRecent returns the newest records, newest first.
func (s *RecordStore) ListRecent(ctx context.Context, limit int) ([]roast.Record, error) {
	query := fmt.Sprintf(`
SELECT id, url, critique, image_url, visitor_id, created_at
FROM %s ORDER BY created_at DESC LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent roasts: %w", err)
	}
	return collectRecords(rows)
}

// ListByVisitor returns all records with the given visitor ID, newest first.
func (s *RecordStore) ListByVisitor(ctx context.Context, visitorID string) ([]roast.Record, error) {
	query := fmt.Sprintf(`
SELECT id, url, critique, image_url, visitor_id, created_at
FROM %s WHERE visitor_id = $1 ORDER BY created_at DESC`, s.table)

	rows, err := s.pool.Query(ctx, query, visitorID)
	if err != nil {
		return nil, fmt.Errorf("list visitor roasts: %w", err)
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]roast.Record, error) {
	defer rows.Close()
	var out []roast.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roast row: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roast rows: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (roast.Record, error) {
	var (
		record       roast.Record
		critiqueJSON []byte
		visitorID    *string
	)
	if err := row.Scan(&record.ID, &record.URL, &critiqueJSON, &record.ImageURL, &visitorID, &record.CreatedAt); err != nil {
		return roast.Record{}, err
	}
	if err := json.Unmarshal(critiqueJSON, &record.Critique); err != nil {
		return roast.Record{}, fmt.Errorf("unmarshal critique: %w", err)
	}
	if visitorID != nil {
		record.VisitorID = *visitorID
	}
	return record, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
