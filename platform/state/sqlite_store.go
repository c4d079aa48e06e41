// Package state provides persistent StateStore implementations for the
// reconciliation engine. It includes a JSON file store and SQLite for local
// use, and PostgreSQL and Redis for state shared between machines.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GoCodeAlone/appsyncctl/platform"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_snapshots.sql
var sqliteMigration string

// SQLiteStore implements platform.StateStore using an SQLite database.
// It is suitable for single-node deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed state store. The dsn parameter
// is the path to the SQLite database file. Use ":memory:" for an in-memory
// database (useful for testing).
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Append pragmas to the DSN so they apply to every connection in the pool.
	if dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Limit to one open connection to serialize writes and avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the snapshot stored for stack.
func (s *SQLiteStore) Load(ctx context.Context, stack string) (*platform.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM appsync_state WHERE stack = ?`, stack).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &platform.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite state: load %q: %w", stack, err)
	}
	return platform.DecodeSnapshot([]byte(data))
}

// Save upserts the snapshot for stack.
func (s *SQLiteStore) Save(ctx context.Context, stack string, snap *platform.Snapshot) error {
	data, err := platform.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO appsync_state (stack, api_id, run_id, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (stack) DO UPDATE SET
			api_id = excluded.api_id,
			run_id = excluded.run_id,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, stack, snap.APIID, snap.RunID, string(data), snap.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlite state: save %q: %w", stack, err)
	}
	return nil
}

// Delete removes the snapshot for stack.
func (s *SQLiteStore) Delete(ctx context.Context, stack string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM appsync_state WHERE stack = ?`, stack); err != nil {
		return fmt.Errorf("sqlite state: delete %q: %w", stack, err)
	}
	return nil
}

var _ platform.StateStore = (*SQLiteStore)(nil)
