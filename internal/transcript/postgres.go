package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the transcript table on first connect. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id            BIGSERIAL PRIMARY KEY,
    session_id    TEXT        NOT NULL,
    role          TEXT        NOT NULL,
    content       TEXT        NOT NULL,
    generation_id BIGINT      NOT NULL DEFAULT 0,
    committed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transcript_entries_session_idx
    ON transcript_entries (session_id, committed_at);
`

// PostgresStore is a Store backed by a PostgreSQL transcript_entries table.
//
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, bootstraps the schema, and returns the
// store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: bootstrap schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	const q = `
		INSERT INTO transcript_entries (session_id, role, content, generation_id, committed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q,
		e.SessionID,
		e.Role,
		e.Content,
		int64(e.GenerationID),
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("transcript: append: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
