package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// PostgresStore keeps keys in the kv_entries table (see internal/db/migrations).
// Group writes run in one transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a store using db. The caller runs migrations first.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}

// GetMany returns the values for keys that exist.
func (s *PostgresStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	q := "SELECT key, value FROM kv_entries WHERE key IN (" + placeholders(len(keys)) + ")"
	rows, err := s.db.QueryContext(ctx, q, toArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("storage: postgres select: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetMany upserts entries in one transaction, in key order.
func (s *PostgresStore) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: postgres begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, k := range keys {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			k, entries[k])
		if err != nil {
			return fmt.Errorf("storage: postgres upsert %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: postgres commit: %w", err)
	}
	return nil
}

// DeleteMany removes keys with one statement.
func (s *PostgresStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q := "DELETE FROM kv_entries WHERE key IN (" + placeholders(len(keys)) + ")"
	if _, err := s.db.ExecContext(ctx, q, toArgs(keys)...); err != nil {
		return fmt.Errorf("storage: postgres delete: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
