// Package ledger owns tenant lifecycle, subscription history, and revenue
// aggregation. Every mutation to a given organization is serialized through
// a per-organization lock so the revenue invariant (totalRevenue equals the
// sum of the history amounts) holds under concurrent writers.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
	"github.com/neuroflux/backend/internal/store"
)

var (
	// ErrNotFound is returned for an unknown organization ID
	ErrNotFound = errors.New("organization not found")
	// ErrInvalidAmount is returned for a non-positive transaction amount
	ErrInvalidAmount = errors.New("transaction amount must be positive")
	// ErrInvalidPlan is returned for an unknown organization plan
	ErrInvalidPlan = errors.New("unknown organization plan")
	// ErrInvalidType is returned for an unknown transaction type
	ErrInvalidType = errors.New("unknown transaction type")
)

// RevenueReport aggregates the global ledger
type RevenueReport struct {
	TotalRevenue int                  `json:"total_revenue"`
	MRR          int                  `json:"mrr"`
	Transactions []models.Transaction `json:"transactions"`
}

// recentTransactionCap bounds the transactions included in a revenue report
const recentTransactionCap = 50

// Service is the organization ledger
type Service struct {
	repo  *repository.OrgRepository
	locks keyedMutex
}

// NewService creates a ledger over the given repository
func NewService(repo *repository.OrgRepository) *Service {
	return &Service{repo: repo}
}

// Provision creates a new Active organization with a generated license key
// and the seat capacity of its plan.
func (s *Service) Provision(ctx context.Context, name, plan string) (*models.Organization, error) {
	if store.PlanPrice(plan) == 0 {
		return nil, ErrInvalidPlan
	}

	org := &models.Organization{
		ID:         fmt.Sprintf("org_%d", time.Now().UnixNano()),
		Name:       name,
		Plan:       plan,
		Status:     models.OrgStatusActive,
		LicenseKey: store.NewLicenseKey(),
		MaxUsers:   store.PlanSeatCap(plan),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Put(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Revoke suspends an organization. The record and its history are retained
// as a tombstone; there is no reverse transition.
func (s *Service) Revoke(ctx context.Context, orgID string) error {
	unlock := s.locks.lock(orgID)
	defer unlock()

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrgNotFound) {
			return ErrNotFound
		}
		return err
	}

	if org.Status == models.OrgStatusSuspended {
		return nil
	}
	org.Status = models.OrgStatusSuspended
	return s.repo.Put(ctx, org)
}

// RecordTransaction appends an immutable line item to the organization's
// subscription history and the global transaction ledger. totalRevenue and
// (for renewals) renewalCount move in the same critical section.
func (s *Service) RecordTransaction(ctx context.Context, orgID string, amount int, txType string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if txType != models.TxActivation && txType != models.TxRenewal {
		return nil, fmt.Errorf("%w %q", ErrInvalidType, txType)
	}

	unlock := s.locks.lock(orgID)
	defer unlock()

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrgNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tx := models.Transaction{
		ID:      "tx_" + uuid.New().String(),
		OrgID:   org.ID,
		OrgName: org.Name,
		Amount:  amount,
		Plan:    org.Plan,
		Date:    time.Now().UTC(),
		Type:    txType,
	}

	org.SubscriptionHistory = append(org.SubscriptionHistory, tx)
	org.TotalRevenue += amount
	if txType == models.TxRenewal {
		org.RenewalCount++
	}

	// Both rows move in one atomic write: a persistence failure leaves the
	// org totals and the global ledger untouched, never half-applied.
	if err := s.repo.PutWithTransaction(ctx, org, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Get returns an organization by ID
func (s *Service) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrgNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return org, nil
}

// List returns every organization, suspended tenants included
func (s *Service) List(ctx context.Context) ([]models.Organization, error) {
	return s.repo.List(ctx)
}

// Count returns the number of organizations
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// ComputeRevenue aggregates the global ledger: the all-time total, the MRR
// (amounts dated in the current calendar month of the current year), and the
// most recent transactions.
func (s *Service) ComputeRevenue(ctx context.Context) (*RevenueReport, error) {
	txs, err := s.repo.Transactions(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &RevenueReport{}
	for _, tx := range txs {
		report.TotalRevenue += tx.Amount
		if tx.Date.Year() == now.Year() && tx.Date.Month() == now.Month() {
			report.MRR += tx.Amount
		}
	}

	if len(txs) > recentTransactionCap {
		txs = txs[:recentTransactionCap]
	}
	report.Transactions = txs
	return report, nil
}

// keyedMutex serializes operations per entity key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
