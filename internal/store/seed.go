package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	mathrand "math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/neuroflux/backend/internal/models"
)

// planPrice is the fixed plan/price table used for synthetic tenants.
var planPrice = []struct {
	Name  string
	Price int
}{
	{models.OrgPlanStarter, 29},
	{models.OrgPlanEnterprise, 99},
	{models.OrgPlanNeuroLink, 299},
}

// PlanSeatCap returns the seat capacity for an organization plan
func PlanSeatCap(plan string) int {
	switch plan {
	case models.OrgPlanEnterprise:
		return 500
	case models.OrgPlanNeuroLink:
		return 1000
	default:
		return 50
	}
}

// PlanPrice returns the monthly price for an organization plan, or 0 for an
// unknown plan name.
func PlanPrice(plan string) int {
	for _, p := range planPrice {
		if p.Name == plan {
			return p.Price
		}
	}
	return 0
}

// NewLicenseKey generates an opaque license key in the NFLX- format
func NewLicenseKey() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	key := make([]byte, 9)
	for i := range key {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			n = big.NewInt(int64(mathrand.Intn(len(alphabet))))
		}
		key[i] = alphabet[n.Int64()]
	}
	return "NFLX-" + string(key)
}

// seedMissing populates any empty collection with starter data so the system
// is demoable with zero configuration. Non-empty collections are left alone.
// Returns true if anything was written.
func seedMissing(s *MemoryStore, orgCount int) bool {
	ctx := context.Background()
	wrote := false

	if n, _ := s.Count(ctx, CollectionSettings); n == 0 {
		_ = s.Put(ctx, CollectionSettings, SettingsKey, models.DefaultGlobalSettings())
		wrote = true
	}

	if n, _ := s.Count(ctx, CollectionOrganizations); n == 0 {
		orgs, txs := SyntheticOrganizations(orgCount)
		for i := range orgs {
			_ = s.Put(ctx, CollectionOrganizations, orgs[i].ID, &orgs[i])
		}
		for i := range txs {
			_ = s.Put(ctx, CollectionTransactions, txs[i].ID, &txs[i])
		}
		log.Printf("[store] seeded %d organizations, %d transactions", len(orgs), len(txs))
		wrote = true
	}

	return wrote
}

// SyntheticOrganizations builds count internally consistent demo tenants.
// Each gets a random plan, a random historical join date, and one transaction
// per elapsed calendar month (Activation first, then Renewals), so the
// revenue invariant holds by construction. The shape is deterministic; the
// values are randomized per run.
func SyntheticOrganizations(count int) ([]models.Organization, []models.Transaction) {
	now := time.Now().UTC()
	orgs := make([]models.Organization, 0, count)
	var txs []models.Transaction

	for i := 0; i < count; i++ {
		plan := planPrice[mathrand.Intn(len(planPrice))]
		joined := now.Add(-time.Duration(mathrand.Int63n(int64(365 * 24 * time.Hour))))

		org := models.Organization{
			ID:         fmt.Sprintf("org_%d_%d", now.UnixNano(), i),
			Name:       fmt.Sprintf("NeuroCorp %d", i+1),
			Plan:       plan.Name,
			Status:     models.OrgStatusActive,
			LicenseKey: NewLicenseKey(),
			MaxUsers:   PlanSeatCap(plan.Name),
			CreatedAt:  joined,
		}

		for date := joined; date.Before(now); date = date.AddDate(0, 1, 0) {
			tx := models.Transaction{
				ID:      "tx_" + uuid.New().String(),
				OrgID:   org.ID,
				OrgName: org.Name,
				Amount:  plan.Price,
				Plan:    plan.Name,
				Date:    date,
				Type:    models.TxRenewal,
			}
			if len(org.SubscriptionHistory) == 0 {
				tx.Type = models.TxActivation
			} else {
				org.RenewalCount++
			}
			org.TotalRevenue += tx.Amount
			org.SubscriptionHistory = append(org.SubscriptionHistory, tx)
			txs = append(txs, tx)
		}

		orgs = append(orgs, org)
	}

	return orgs, txs
}
