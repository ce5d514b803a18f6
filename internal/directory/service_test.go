package directory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
	"github.com/neuroflux/backend/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.OpenMemory(filepath.Join(t.TempDir(), "data.json"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return NewService(repository.NewUserRepository(s))
}

func register(t *testing.T, svc *Service, email, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user, err := svc.Register(context.Background(), "Test User", email, hash, models.RoleUser)
	require.NoError(t, err)
	return user
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "alice@example.com", "password123")

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "Imposter", "alice@example.com", hash, models.RoleUser)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterDefaults(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")

	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.PlanFree, user.Plan)
	assert.True(t, user.Verified)
	assert.Zero(t, user.UsageCount)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	// Wrong password and unknown email produce the same error
	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSetPlan(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, svc.SetPlan(ctx, user.ID, models.PlanPro))
	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, got.Plan)

	// Idempotent
	require.NoError(t, svc.SetPlan(ctx, user.ID, models.PlanPro))

	assert.ErrorIs(t, svc.SetPlan(ctx, "missing", models.PlanPro), ErrNotFound)
}

func TestIncrementUsageConcurrent(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.IncrementUsage(ctx, user.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.UsageCount, "no increment may be lost")
}

func TestTryConsumeUsageAdmitsExactly(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	const limit = 3
	const workers = 12
	allowed := func(u *models.User) bool { return u.UsageCount < limit }

	var wg sync.WaitGroup
	consumed := make(chan bool, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, ok, err := svc.TryConsumeUsage(ctx, user.ID, allowed)
			assert.NoError(t, err)
			consumed <- ok
		}()
	}
	wg.Wait()
	close(consumed)

	admitted := 0
	for ok := range consumed {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted, "concurrent requests must not over-admit")

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.UsageCount)
}

func TestRefundUsageFloorsAtZero(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	got, err := svc.RefundUsage(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsageCount)

	_, err = svc.IncrementUsage(ctx, user.ID)
	require.NoError(t, err)

	got, err = svc.RefundUsage(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsageCount)

	_, err = svc.RefundUsage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordActivity(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	svc.RecordActivity(ctx, user.ID, "Generated Report")

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Generated Report", got.CurrentAction)

	// Unknown user: logged, never surfaced
	svc.RecordActivity(ctx, "missing", "noop")
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	user := register(t, svc, "alice@example.com", "password123")
	ctx := context.Background()

	removed, err := svc.Delete(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", removed.Email)

	_, err = svc.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// A repeated delete reports the record as gone
	_, err = svc.Delete(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
