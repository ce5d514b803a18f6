package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/neuroflux/backend/internal/agent"
	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/metrics"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/quota"
)

// AgentHandler handles the server-side AI transform endpoint
type AgentHandler struct {
	enforcer  *quota.Enforcer
	directory *directory.Service
	client    *agent.Client
	auditLog  *audit.Log
	collector *metrics.Collector // may be nil when metrics are disabled
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(
	enforcer *quota.Enforcer,
	dir *directory.Service,
	client *agent.Client,
	auditLog *audit.Log,
	collector *metrics.Collector,
) *AgentHandler {
	return &AgentHandler{
		enforcer:  enforcer,
		directory: dir,
		client:    client,
		auditLog:  auditLog,
		collector: collector,
	}
}

// TransformRequest represents an AI transform request
type TransformRequest struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
}

// Transform runs a gated AI operation server-side: admission and the usage
// increment happen atomically before the provider is called, so a burst of
// concurrent requests cannot push a free-tier user past the limit. A failed
// provider call refunds the charged unit.
// POST /api/user/agent
func (h *AgentHandler) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		response.ValidationError(w, "Instruction is required")
		return
	}

	userID := auth.GetUserID(r.Context())
	decision, err := h.enforcer.TryConsume(r.Context(), userID)
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			if h.collector != nil {
				h.collector.RecordQuotaDenied()
			}
			response.QuotaExceeded(w, exceeded.Usage, exceeded.Limit)
			return
		}
		if errors.Is(err, directory.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to check usage")
		return
	}

	h.directory.RecordActivity(r.Context(), userID, "Agent Transform")

	result, err := h.client.Transform(r.Context(), req.Instruction, req.Input)
	if err != nil {
		// The unit was charged up front; a provider failure hands it back.
		h.enforcer.Refund(r.Context(), userID)
		if h.collector != nil {
			h.collector.RecordAgentCall("error")
		}
		if errors.Is(err, agent.ErrNotConfigured) {
			response.Error(w, http.StatusServiceUnavailable, "agent_unavailable",
				"The AI provider is not configured")
			return
		}
		log.Printf("[agent] transform for %s failed: %v", userID, err)
		h.auditLog.Append(r.Context(), "Agent Failure", userID,
			"AI transform failed: "+err.Error(), models.SeverityError)
		response.Error(w, http.StatusBadGateway, "agent_error",
			"The AI provider could not complete the request")
		return
	}

	if h.collector != nil {
		h.collector.RecordAgentCall("ok")
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"result": result,
		"usage":  decision.Usage,
		"limit":  decision.Limit,
	})
}
