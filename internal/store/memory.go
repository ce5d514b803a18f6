package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore is the cache backend: all collections live in process memory
// and every mutation queues a best-effort serialization of the whole store
// to a single JSON file. A mutation is visible to readers immediately; its
// durability is only as good as the last completed snapshot.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage

	path  string
	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	// onSnapshot is invoked after each completed file write (metrics hook).
	onSnapshot func()
}

// OpenMemory loads the backing file (seeding it when absent, corrupt, or
// partially empty) and starts the snapshot writer.
func OpenMemory(path string, seedOrgs int) (*MemoryStore, error) {
	s := &MemoryStore{
		collections: emptyCollections(),
		path:        path,
		dirty:       make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	seeded := s.load(seedOrgs)

	s.wg.Add(1)
	go s.writeLoop()

	if seeded {
		s.markDirty()
	}

	return s, nil
}

func emptyCollections() map[string]map[string]json.RawMessage {
	return map[string]map[string]json.RawMessage{
		CollectionUsers:         {},
		CollectionOrganizations: {},
		CollectionTransactions:  {},
		CollectionLogs:          {},
		CollectionSettings:      {},
	}
}

// load reads the backing file into memory and seeds whatever is missing.
// It returns true when seeding produced data that should be flushed.
func (s *MemoryStore) load(seedOrgs int) bool {
	data, err := os.ReadFile(s.path)
	if err == nil {
		var loaded map[string]map[string]json.RawMessage
		if jsonErr := json.Unmarshal(data, &loaded); jsonErr == nil {
			for name, records := range loaded {
				if records == nil {
					continue
				}
				s.collections[name] = records
			}
		} else {
			log.Printf("[store] data file corrupt, reseeding: %v", jsonErr)
		}
	}

	// Seed only the collections that came up empty so an existing partial
	// dataset is never discarded.
	return seedMissing(s, seedOrgs)
}

// Get retrieves a record
func (s *MemoryStore) Get(ctx context.Context, collection, key string, dest any) error {
	s.mu.RLock()
	raw, ok := s.collections[collection][key]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

// Put upserts a record and queues a snapshot. The disk write is
// fire-and-forget: it can never fail the caller's request path.
func (s *MemoryStore) Put(ctx context.Context, collection, key string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}

	s.mu.Lock()
	if s.collections[collection] == nil {
		s.collections[collection] = map[string]json.RawMessage{}
	}
	s.collections[collection][key] = raw
	s.mu.Unlock()

	s.markDirty()
	return nil
}

// PutMulti applies several upserts as one mutation. Every record is
// marshaled before any map is touched, so a failure leaves nothing applied.
func (s *MemoryStore) PutMulti(ctx context.Context, writes []Write) error {
	encoded := make([]json.RawMessage, len(writes))
	for i, w := range writes {
		raw, err := json.Marshal(w.Record)
		if err != nil {
			return fmt.Errorf("failed to marshal %s/%s: %w", w.Collection, w.Key, err)
		}
		encoded[i] = raw
	}

	s.mu.Lock()
	for i, w := range writes {
		if s.collections[w.Collection] == nil {
			s.collections[w.Collection] = map[string]json.RawMessage{}
		}
		s.collections[w.Collection][w.Key] = encoded[i]
	}
	s.mu.Unlock()

	s.markDirty()
	return nil
}

// Delete removes a record and queues a snapshot
func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	_, ok := s.collections[collection][key]
	if ok {
		delete(s.collections[collection], key)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.markDirty()
	return nil
}

// Scan invokes fn for every record in the collection. The key set is copied
// under the read lock so fn can safely call back into the store.
func (s *MemoryStore) Scan(ctx context.Context, collection string, fn ScanFunc) error {
	s.mu.RLock()
	records := make(map[string]json.RawMessage, len(s.collections[collection]))
	for k, v := range s.collections[collection] {
		records[k] = v
	}
	s.mu.RUnlock()

	for key, raw := range records {
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records in a collection
func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]), nil
}

// Mode reports the active backend mode
func (s *MemoryStore) Mode() Mode {
	return ModeCache
}

// Ping always succeeds for the in-process backend
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the snapshot writer after a final flush
func (s *MemoryStore) Close() {
	close(s.done)
	s.wg.Wait()
}

// SetSnapshotHook registers a callback run after each completed file write
func (s *MemoryStore) SetSnapshotHook(fn func()) {
	s.mu.Lock()
	s.onSnapshot = fn
	s.mu.Unlock()
}

// markDirty signals the writer without blocking. The single-slot channel
// coalesces bursts of mutations into one snapshot.
func (s *MemoryStore) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// writeLoop is the single writer consuming dirty signals. Running all disk
// I/O on one goroutine guarantees snapshot ordering and at-least-once
// delivery of the latest state.
func (s *MemoryStore) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.dirty:
			if err := s.snapshot(); err != nil {
				log.Printf("[store] snapshot write failed: %v", err)
			}
		case <-s.done:
			// Final flush covers any mutation whose signal is still queued.
			select {
			case <-s.dirty:
				if err := s.snapshot(); err != nil {
					log.Printf("[store] final snapshot failed: %v", err)
				}
			default:
			}
			return
		}
	}
}

// snapshot serializes the whole store and atomically replaces the file
func (s *MemoryStore) snapshot() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.collections, "", "  ")
	hook := s.onSnapshot
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	if hook != nil {
		hook()
	}
	return nil
}
