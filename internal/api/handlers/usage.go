package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/quota"
)

// UsageHandler handles quota and subscription endpoints
type UsageHandler struct {
	enforcer  *quota.Enforcer
	directory *directory.Service
	auditLog  *audit.Log
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(enforcer *quota.Enforcer, dir *directory.Service, auditLog *audit.Log) *UsageHandler {
	return &UsageHandler{
		enforcer:  enforcer,
		directory: dir,
		auditLog:  auditLog,
	}
}

// UpgradeRequest represents a plan change after an out-of-band payment
type UpgradeRequest struct {
	Plan string `json:"plan"`
}

// CheckUsage reports whether the user may perform another gated operation
// POST /api/user/usage/check
func (h *UsageHandler) CheckUsage(w http.ResponseWriter, r *http.Request) {
	decision, err := h.enforcer.Check(r.Context(), auth.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to check usage")
		return
	}

	response.JSON(w, http.StatusOK, decision)
}

// IncrementUsage records one completed gated operation. Clients call this
// after the operation; admission was checked separately.
// POST /api/user/usage/increment
func (h *UsageHandler) IncrementUsage(w http.ResponseWriter, r *http.Request) {
	decision, err := h.enforcer.Increment(r.Context(), auth.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to record usage")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"usage":   decision.Usage,
		"limit":   decision.Limit,
	})
}

// Upgrade assigns a paid plan to the current user. Payment happens out of
// band; this endpoint is the post-payment signal.
// POST /api/user/upgrade
func (h *UsageHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	var req UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	if req.Plan == "" {
		req.Plan = models.PlanPro
	}
	if !models.IsValidPlan(req.Plan) {
		response.ValidationError(w, "Unknown plan: "+req.Plan)
		return
	}

	userID := auth.GetUserID(r.Context())
	if err := h.directory.SetPlan(r.Context(), userID, req.Plan); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to change plan")
		return
	}

	user, err := h.directory.Get(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to change plan")
		return
	}

	h.auditLog.Append(r.Context(), "Subscription Upgrade", user.Name,
		"User upgraded to "+req.Plan, models.SeverityInfo)

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    NewUserResponse(user),
	})
}
