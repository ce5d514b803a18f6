// Package audit provides the append-only, bounded operational log of
// security- and billing-relevant events. The log is advisory: the ledger,
// not this log, is the system of record for billing.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
)

// DefaultMaxEntries bounds the stored log when no limit is configured
const DefaultMaxEntries = 1000

// Log appends and reads audit entries
type Log struct {
	repo       *repository.AuditRepository
	maxEntries int
}

// NewLog creates an audit log with the given retention bound
func NewLog(repo *repository.AuditRepository, maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{repo: repo, maxEntries: maxEntries}
}

// Append records an event. It never fails the caller: an append that cannot
// be persisted is reported on the process log and dropped.
func (l *Log) Append(ctx context.Context, action, actor, details, severity string) {
	entry := &models.AuditLogEntry{
		ID:        uuid.New().String(),
		Action:    action,
		User:      actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
		Severity:  severity,
	}

	if err := l.repo.Append(ctx, entry); err != nil {
		log.Printf("[audit] dropped entry %q: %v", action, err)
	}
}

// Recent returns the n most recent entries, most-recent-first. When the
// stored log has grown past the retention bound, the oldest entries beyond
// the bound are discarded during this read pass.
func (l *Log) Recent(ctx context.Context, n int) ([]models.AuditLogEntry, error) {
	entries, err := l.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	if len(entries) > l.maxEntries {
		for _, old := range entries[l.maxEntries:] {
			if err := l.repo.Delete(ctx, old.ID); err != nil {
				log.Printf("[audit] failed to trim entry %s: %v", old.ID, err)
			}
		}
		entries = entries[:l.maxEntries]
	}

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// ForUser returns recent entries whose actor matches name, newest first
func (l *Log) ForUser(ctx context.Context, name string) ([]models.AuditLogEntry, error) {
	entries, err := l.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	var matched []models.AuditLogEntry
	for _, entry := range entries {
		if entry.User == name {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}
