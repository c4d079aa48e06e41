package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/appsyncctl/platform"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresMigration = `
CREATE TABLE IF NOT EXISTS appsync_state (
    stack      TEXT PRIMARY KEY,
    api_id     TEXT NOT NULL DEFAULT '',
    run_id     TEXT NOT NULL DEFAULT '',
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore implements platform.StateStore on PostgreSQL through the
// pgx database/sql driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and creates the state table if needed.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(postgresMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load returns the snapshot stored for stack.
func (s *PostgresStore) Load(ctx context.Context, stack string) (*platform.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM appsync_state WHERE stack = $1`, stack).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &platform.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres state: load %q: %w", stack, err)
	}
	return platform.DecodeSnapshot(data)
}

// Save upserts the snapshot for stack.
func (s *PostgresStore) Save(ctx context.Context, stack string, snap *platform.Snapshot) error {
	data, err := platform.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO appsync_state (stack, api_id, run_id, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stack) DO UPDATE SET
			api_id = EXCLUDED.api_id,
			run_id = EXCLUDED.run_id,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, stack, snap.APIID, snap.RunID, string(data), snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres state: save %q: %w", stack, err)
	}
	return nil
}

// Delete removes the snapshot for stack.
func (s *PostgresStore) Delete(ctx context.Context, stack string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM appsync_state WHERE stack = $1`, stack); err != nil {
		return fmt.Errorf("postgres state: delete %q: %w", stack, err)
	}
	return nil
}

var _ platform.StateStore = (*PostgresStore)(nil)
