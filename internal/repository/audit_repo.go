package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/store"
)

// AuditRepository handles the logs collection
type AuditRepository struct {
	store store.Store
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(s store.Store) *AuditRepository {
	return &AuditRepository{store: s}
}

// Append stores a new audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if err := r.store.Put(ctx, store.CollectionLogs, entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// All returns every stored audit entry, newest first
func (r *AuditRepository) All(ctx context.Context) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.store.Scan(ctx, store.CollectionLogs, func(key string, raw []byte) error {
		var entry models.AuditLogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("failed to decode audit entry %s: %w", key, err)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// Delete removes a single entry (retention trimming)
func (r *AuditRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.CollectionLogs, id)
}
