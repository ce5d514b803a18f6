package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
	"github.com/neuroflux/backend/internal/store"
)

func newTestLog(t *testing.T, maxEntries int) (*Log, *repository.AuditRepository) {
	t.Helper()
	s, err := store.OpenMemory(filepath.Join(t.TempDir(), "data.json"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	repo := repository.NewAuditRepository(s)
	return NewLog(repo, maxEntries), repo
}

func TestAppendAndRecent(t *testing.T) {
	log, _ := newTestLog(t, 100)
	ctx := context.Background()

	log.Append(ctx, "User Login", "alice", "Successful authentication", models.SeverityInfo)
	log.Append(ctx, "User Signup", "bob", "New user verified", models.SeverityInfo)

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.Timestamp.IsZero())
	}
}

func TestRecentOrderingAndLimit(t *testing.T) {
	log, repo := newTestLog(t, 100)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, &models.AuditLogEntry{
			ID:        fmt.Sprintf("entry-%d", i),
			Action:    "Test",
			User:      "alice",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Severity:  models.SeverityInfo,
		}))
	}

	entries, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry-4", entries[0].ID, "newest first")
	assert.Equal(t, "entry-2", entries[2].ID)
}

func TestRecentTrimsBeyondBound(t *testing.T) {
	const bound = 4
	log, repo := newTestLog(t, bound)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < bound+3; i++ {
		require.NoError(t, repo.Append(ctx, &models.AuditLogEntry{
			ID:        fmt.Sprintf("entry-%d", i),
			Action:    "Test",
			User:      "alice",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Severity:  models.SeverityInfo,
		}))
	}

	entries, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, bound)
	assert.Equal(t, fmt.Sprintf("entry-%d", bound+2), entries[0].ID)

	// The oldest entries were physically removed during the read pass
	stored, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, bound)
}

func TestForUser(t *testing.T) {
	log, _ := newTestLog(t, 100)
	ctx := context.Background()

	log.Append(ctx, "User Login", "alice", "", models.SeverityInfo)
	log.Append(ctx, "User Login", "bob", "", models.SeverityInfo)
	log.Append(ctx, "Subscription Upgrade", "alice", "", models.SeverityInfo)

	entries, err := log.ForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "alice", entry.User)
	}

	none, err := log.ForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
