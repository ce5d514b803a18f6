package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/backend/internal/models"
)

func TestOrgRepositoryPutAndGet(t *testing.T) {
	repo := NewOrgRepository(newTestStore(t))
	ctx := context.Background()

	org := &models.Organization{
		ID:         "org_1",
		Name:       "Acme",
		Plan:       models.OrgPlanStarter,
		Status:     models.OrgStatusActive,
		LicenseKey: "NFLX-TESTKEY01",
		MaxUsers:   50,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Put(ctx, org))

	got, err := repo.GetByID(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, models.OrgStatusActive, got.Status)

	_, err = repo.GetByID(ctx, "org_missing")
	assert.ErrorIs(t, err, ErrOrgNotFound)
}

func TestOrgRepositoryListIncludesSuspended(t *testing.T) {
	repo := NewOrgRepository(newTestStore(t))
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, repo.Put(ctx, &models.Organization{
		ID: "org_a", Name: "Active Co", Status: models.OrgStatusActive, CreatedAt: base,
	}))
	require.NoError(t, repo.Put(ctx, &models.Organization{
		ID: "org_b", Name: "Gone Co", Status: models.OrgStatusSuspended, CreatedAt: base.Add(time.Minute),
	}))

	orgs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "org_a", orgs[0].ID)
	assert.Equal(t, models.OrgStatusSuspended, orgs[1].Status)
}

func TestOrgRepositoryTransactionsNewestFirst(t *testing.T) {
	repo := NewOrgRepository(newTestStore(t))
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"tx_1", "tx_2", "tx_3"} {
		require.NoError(t, repo.PutTransaction(ctx, &models.Transaction{
			ID:     id,
			OrgID:  "org_1",
			Amount: 29,
			Date:   base.Add(time.Duration(i) * time.Hour),
			Type:   models.TxRenewal,
		}))
	}

	txs, err := repo.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx_3", txs[0].ID)
	assert.Equal(t, "tx_1", txs[2].ID)
}
