package hoststore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists the authoring state to a single SQLite file. Payloads
// are stored as JSON blobs, one row per instance plus one context row.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database file.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "publishcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS context_data (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) LoadContextData(ctx context.Context) (map[string]any, error) {
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

func (s *SQLiteStore) SaveContextData(ctx context.Context, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode context data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO context_data (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, payload)
	if err != nil {
		return fmt.Errorf("store context data: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListInstances(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM instances ORDER BY rowid`)
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

func (s *SQLiteStore) UpsertInstance(ctx context.Context, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode instance %q: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO instances (id, payload) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, id, payload)
	if err != nil {
		return fmt.Errorf("store instance %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteInstance(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
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

func (s *SQLiteStore) Close() error { return s.db.Close() }

func decodePayload(payload []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
