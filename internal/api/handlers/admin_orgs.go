package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/ledger"
	"github.com/neuroflux/backend/internal/models"
)

// AdminOrgHandler handles organization lifecycle and revenue analytics
type AdminOrgHandler struct {
	ledger   *ledger.Service
	auditLog *audit.Log
}

// NewAdminOrgHandler creates a new admin organization handler
func NewAdminOrgHandler(l *ledger.Service, auditLog *audit.Log) *AdminOrgHandler {
	return &AdminOrgHandler{ledger: l, auditLog: auditLog}
}

// ProvisionRequest represents a new tenant provisioning request
type ProvisionRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan"`
}

// TransactionRequest represents a billing event to record against a tenant
type TransactionRequest struct {
	Amount int    `json:"amount"`
	Type   string `json:"type"`
}

// List returns every organization, suspended tenants included
// GET /api/admin/organizations
func (h *AdminOrgHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.ledger.List(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list organizations")
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	response.JSON(w, http.StatusOK, orgs)
}

// Provision creates a new active tenant with a generated license key
// POST /api/admin/organizations
func (h *AdminOrgHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.ValidationError(w, "Organization name is required")
		return
	}

	org, err := h.ledger.Provision(r.Context(), req.Name, req.Plan)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidPlan) {
			response.ValidationError(w, "Unknown plan: "+req.Plan)
			return
		}
		log.Printf("[admin] provisioning %q failed: %v", req.Name, err)
		response.InternalError(w, "Failed to provision organization")
		return
	}

	h.auditLog.Append(r.Context(), "Organization Provisioned", actorName(r),
		fmt.Sprintf("Provisioned %s on %s plan", org.Name, org.Plan), models.SeverityInfo)

	response.JSON(w, http.StatusCreated, org)
}

// Revoke suspends an organization. The record stays listed as a tombstone.
// DELETE /api/admin/organizations/{id}
func (h *AdminOrgHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.ledger.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			response.NotFound(w, "Organization not found")
			return
		}
		response.InternalError(w, "Failed to revoke organization")
		return
	}

	h.auditLog.Append(r.Context(), "Organization Revoked", actorName(r),
		"Suspended organization "+id, models.SeverityWarning)

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Suspended",
	})
}

// RecordTransaction appends a billing event to a tenant's history
// POST /api/admin/organizations/{id}/transactions
func (h *AdminOrgHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = models.TxRenewal
	}

	tx, err := h.ledger.RecordTransaction(r.Context(), id, req.Amount, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			response.NotFound(w, "Organization not found")
		case errors.Is(err, ledger.ErrInvalidAmount):
			response.ValidationError(w, "Transaction amount must be positive")
		case errors.Is(err, ledger.ErrInvalidType):
			response.ValidationError(w, "Unknown transaction type: "+req.Type)
		default:
			// Persistence failures included: the mutation did not apply.
			log.Printf("[admin] recording transaction for %s failed: %v", id, err)
			response.InternalError(w, "Failed to record transaction")
		}
		return
	}

	h.auditLog.Append(r.Context(), "Transaction Recorded", actorName(r),
		fmt.Sprintf("%s of $%d for %s", tx.Type, tx.Amount, tx.OrgName), models.SeverityInfo)

	response.JSON(w, http.StatusCreated, tx)
}

// Revenue returns the global revenue report
// GET /api/admin/analytics/revenue
func (h *AdminOrgHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.ComputeRevenue(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to compute revenue")
		return
	}
	if report.Transactions == nil {
		report.Transactions = []models.Transaction{}
	}
	response.JSON(w, http.StatusOK, report)
}
