package hoststore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion.
var _ Store = (*PostgresStore)(nil)

const (
	postgresDriver = "pgx"
	// Default DSN matches Open defaults while allowing overrides via env.
	defaultPostgresDSN = "postgres://localhost/publishcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresStore persists the authoring state to Postgres, one JSONB row per
// instance plus one context row. Intended for shared farm sessions where
// several workers publish against the same project.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a Postgres-backed store using the provided DSN
// (falls back to a local default) and ensures the tables exist.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS context_data (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			payload JSONB NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) LoadContextData(ctx context.Context) (map[string]any, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM context_data WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select context data: %w", err)
	}
	return decodePayload(payload)
}

func (s *PostgresStore) SaveContextData(ctx context.Context, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode context data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO context_data (id, payload) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`, payload)
	if err != nil {
		return fmt.Errorf("store context data: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInstances(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM instances ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select instances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var output []map[string]any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		data, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		output = append(output, data)
	}
	return output, rows.Err()
}

func (s *PostgresStore) UpsertInstance(ctx context.Context, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode instance %q: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO instances (id, payload) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`, id, payload)
	if err != nil {
		return fmt.Errorf("store instance %q: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) DeleteInstance(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instance %q: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete instance %q: %w", id, err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
