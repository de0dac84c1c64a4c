package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore is an EventStore that inserts one row per audit record
// into a single table. It is the minimal local/dev sink: no partitioning,
// no projection, just a durable place to look at raw records while
// building against the proxy without standing up Redis or NATS.
type PostgresStore struct {
	db *sql.DB
}

// postgresSchema is the table PostgresStore writes to; NewPostgresStore
// creates it if it does not already exist. No other schema migration is
// performed.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_record (
	id         BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore opens a connection pool to dsn and ensures the
// audit_record table exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ensure audit_record table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Put inserts one row for record.
func (s *PostgresStore) Put(ctx context.Context, record Record) error {
	payload, err := record.Marshal()
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("audit: encode record: %w", err)}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_record (request_id, kind, payload) VALUES ($1, $2, $3)`,
		record.RequestId, string(record.Kind), payload,
	)
	if err != nil {
		return fmt.Errorf("audit: postgres insert: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
