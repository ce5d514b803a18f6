package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds every document as a JSONB row keyed by (collection, key).
// The partial unique index enforces invariant 1 (user email uniqueness)
// inside the database rather than in application code.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
);
CREATE UNIQUE INDEX IF NOT EXISTS records_users_email_idx
	ON records ((doc->>'email'))
	WHERE collection = 'users';
`

// PostgresStore is the durable backend. Every Put and Delete is
// synchronously acknowledged by the database before returning.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to PostgreSQL and ensures the schema exists
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Printf("[store] connected to PostgreSQL (max_conns=%d)", poolConfig.MaxConns)

	return &PostgresStore{pool: pool}, nil
}

// Get retrieves a single record
func (s *PostgresStore) Get(ctx context.Context, collection, key string, dest any) error {
	var raw []byte
	query := `SELECT doc FROM records WHERE collection = $1 AND key = $2`
	err := s.pool.QueryRow(ctx, query, collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	return json.Unmarshal(raw, dest)
}

// Put upserts a record, acknowledged synchronously
func (s *PostgresStore) Put(ctx context.Context, collection, key string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return &PersistenceError{Op: "put", Collection: collection, Key: key, Err: err}
	}

	query := `
		INSERT INTO records (collection, key, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, collection, key, raw); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return &PersistenceError{Op: "put", Collection: collection, Key: key, Err: err}
	}
	return nil
}

// PutMulti upserts several records inside a single database transaction.
// The rows commit together or roll back together.
func (s *PostgresStore) PutMulti(ctx context.Context, writes []Write) error {
	encoded := make([][]byte, len(writes))
	for i, w := range writes {
		raw, err := json.Marshal(w.Record)
		if err != nil {
			return &PersistenceError{Op: "put-multi", Collection: w.Collection, Key: w.Key, Err: err}
		}
		encoded[i] = raw
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "put-multi", Err: err}
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO records (collection, key, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`
	for i, w := range writes {
		if _, err := tx.Exec(ctx, query, w.Collection, w.Key, encoded[i]); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return &PersistenceError{Op: "put-multi", Collection: w.Collection, Key: w.Key, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "put-multi", Err: err}
	}
	return nil
}

// Delete removes a record
func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return &PersistenceError{Op: "delete", Collection: collection, Key: key, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Scan streams every record in a collection through fn
func (s *PostgresStore) Scan(ctx context.Context, collection string, fn ScanFunc) error {
	rows, err := s.pool.Query(ctx,
		`SELECT key, doc FROM records WHERE collection = $1`, collection)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of records in a collection
func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// Mode reports the active backend mode
func (s *PostgresStore) Mode() Mode {
	return ModeDurable
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
		log.Println("[store] connection pool closed")
	}
}

// isUniqueViolation checks if an error is a unique constraint violation
func isUniqueViolation(err error) bool {
	// PostgreSQL unique violation error code is 23505
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "23505")
}
