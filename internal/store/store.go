// Package store provides the persistence layer. Two backends implement the
// same contract: a PostgreSQL document store used when DATABASE_URL is
// configured and reachable ("durable" mode), and an in-process store mirrored
// to a single JSON file ("cache" mode). The backend is chosen once at startup
// and never switches for the lifetime of the process.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/neuroflux/backend/internal/config"
)

// Collection names. The cache-mode file uses these as its top-level keys.
const (
	CollectionUsers         = "users"
	CollectionOrganizations = "organizations"
	CollectionTransactions  = "transactions"
	CollectionLogs          = "logs"
	CollectionSettings      = "globalSettings"
)

// SettingsKey is the key of the GlobalSettings singleton record.
const SettingsKey = "global"

// Mode identifies the active backend
type Mode string

const (
	ModeDurable Mode = "durable"
	ModeCache   Mode = "cache"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("record conflicts with an existing record")
)

// PersistenceError wraps a failed durable-mode write. The triggering
// mutation must be treated as not applied.
type PersistenceError struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError checks if an error is a durable-mode write failure
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// ScanFunc receives one record per invocation. Returning an error stops the
// scan and propagates the error to the caller.
type ScanFunc func(key string, raw []byte) error

// Write is one record of a multi-record mutation
type Write struct {
	Collection string
	Key        string
	Record     any
}

// Store is the uniform read/write contract over both backends.
type Store interface {
	// Get unmarshals the record at collection/key into dest.
	// Returns ErrNotFound if the record does not exist.
	Get(ctx context.Context, collection, key string, dest any) error

	// Put upserts a record. In cache mode the disk write is queued and Put
	// never fails the caller; in durable mode a failed write surfaces as a
	// *PersistenceError.
	Put(ctx context.Context, collection, key string, record any) error

	// PutMulti upserts several records as one atomic mutation: either every
	// write applies or none does. In durable mode the writes execute in a
	// single database transaction.
	PutMulti(ctx context.Context, writes []Write) error

	// Delete removes a record. Returns ErrNotFound if absent.
	Delete(ctx context.Context, collection, key string) error

	// Scan invokes fn for every record currently in the collection. It is
	// restartable: each call re-reads current state, not a snapshot taken
	// at some earlier time.
	Scan(ctx context.Context, collection string, fn ScanFunc) error

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Mode reports which backend is active.
	Mode() Mode

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close flushes pending work and releases resources.
	Close()
}

// Open selects and initializes the storage backend. When cfg.DatabaseURL is
// set, the durable backend is attempted first; on connection failure the
// process falls back to cache mode rather than aborting, matching the
// zero-configuration startup contract.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.DatabaseURL != "" {
		pg, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err == nil {
			log.Printf("[store] durable mode (postgres)")
			return pg, nil
		}
		log.Printf("[store] database unreachable, falling back to cache mode: %v", err)
	}

	mem, err := OpenMemory(cfg.DataFile, cfg.SeedOrgCount)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	log.Printf("[store] cache mode (file=%s)", cfg.DataFile)
	return mem, nil
}
