package handlers

import (
	"net/http"
	"time"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/store"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store     store.Store
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s, startTime: time.Now()}
}

// Health returns overall service health
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response.JSON(w, code, map[string]interface{}{
		"status":         status,
		"storage_mode":   string(h.store.Mode()),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Live reports process liveness
// GET /health/live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// Ready reports whether the storage backend is reachable
// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
		})
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}
