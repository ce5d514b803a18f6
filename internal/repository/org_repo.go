package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/store"
)

// ErrOrgNotFound is returned when an organization is not found
var ErrOrgNotFound = errors.New("organization not found")

// OrgRepository handles the organizations and transactions collections
type OrgRepository struct {
	store store.Store
}

// NewOrgRepository creates a new organization repository
func NewOrgRepository(s store.Store) *OrgRepository {
	return &OrgRepository{store: s}
}

// Put upserts an organization record
func (r *OrgRepository) Put(ctx context.Context, org *models.Organization) error {
	if err := r.store.Put(ctx, store.CollectionOrganizations, org.ID, org); err != nil {
		return fmt.Errorf("failed to store organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrgRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.store.Get(ctx, store.CollectionOrganizations, id, &org)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// List returns every organization, suspended tenants included, ordered by
// creation time.
func (r *OrgRepository) List(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.store.Scan(ctx, store.CollectionOrganizations, func(key string, raw []byte) error {
		var org models.Organization
		if err := json.Unmarshal(raw, &org); err != nil {
			return fmt.Errorf("failed to decode organization %s: %w", key, err)
		}
		orgs = append(orgs, org)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orgs, func(i, j int) bool {
		return orgs[i].CreatedAt.Before(orgs[j].CreatedAt)
	})
	return orgs, nil
}

// Count returns the number of organizations
func (r *OrgRepository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, store.CollectionOrganizations)
}

// PutWithTransaction writes an organization and a new ledger transaction as
// one atomic mutation, so the per-org totals and the global ledger cannot
// diverge when one of the writes fails.
func (r *OrgRepository) PutWithTransaction(ctx context.Context, org *models.Organization, tx *models.Transaction) error {
	err := r.store.PutMulti(ctx, []store.Write{
		{Collection: store.CollectionOrganizations, Key: org.ID, Record: org},
		{Collection: store.CollectionTransactions, Key: tx.ID, Record: tx},
	})
	if err != nil {
		return fmt.Errorf("failed to store organization transaction: %w", err)
	}
	return nil
}

// PutTransaction appends an immutable transaction to the global ledger
func (r *OrgRepository) PutTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := r.store.Put(ctx, store.CollectionTransactions, tx.ID, tx); err != nil {
		return fmt.Errorf("failed to store transaction: %w", err)
	}
	return nil
}

// Transactions returns every transaction, newest first
func (r *OrgRepository) Transactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.store.Scan(ctx, store.CollectionTransactions, func(key string, raw []byte) error {
		var tx models.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return fmt.Errorf("failed to decode transaction %s: %w", key, err)
		}
		txs = append(txs, tx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
	return txs, nil
}
