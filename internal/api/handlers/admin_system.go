package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/ledger"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
	"github.com/neuroflux/backend/internal/store"
)

// AdminSystemHandler handles telemetry, logs, and global settings
type AdminSystemHandler struct {
	directory *directory.Service
	ledger    *ledger.Service
	auditLog  *audit.Log
	settings  *repository.SettingsRepository
	store     store.Store
	startTime time.Time
}

// NewAdminSystemHandler creates a new admin system handler
func NewAdminSystemHandler(
	dir *directory.Service,
	l *ledger.Service,
	auditLog *audit.Log,
	settings *repository.SettingsRepository,
	s store.Store,
) *AdminSystemHandler {
	return &AdminSystemHandler{
		directory: dir,
		ledger:    l,
		auditLog:  auditLog,
		settings:  settings,
		store:     s,
		startTime: time.Now(),
	}
}

// SystemStats is the deep telemetry payload for the admin dashboard
type SystemStats struct {
	TotalUsers     int                    `json:"total_users"`
	TotalOrgs      int                    `json:"total_orgs"`
	StorageMode    string                 `json:"storage_mode"`
	UptimeSeconds  int64                  `json:"uptime_seconds"`
	Platform       string                 `json:"platform"`
	Arch           string                 `json:"arch"`
	CPUCores       int                    `json:"cpu_cores"`
	Goroutines     int                    `json:"goroutines"`
	HeapAllocMB    uint64                 `json:"heap_alloc_mb"`
	GlobalSettings *models.GlobalSettings `json:"global_settings"`
}

// MaintenanceRequest toggles maintenance mode
type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

// Stats returns entity counts, process telemetry, and the global settings
// GET /api/admin/stats
func (h *AdminSystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userCount, err := h.directory.Count(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to load stats")
		return
	}
	orgCount, err := h.ledger.Count(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to load stats")
		return
	}
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to load stats")
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response.JSON(w, http.StatusOK, SystemStats{
		TotalUsers:     userCount,
		TotalOrgs:      orgCount,
		StorageMode:    string(h.store.Mode()),
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		Platform:       runtime.GOOS,
		Arch:           runtime.GOARCH,
		CPUCores:       runtime.NumCPU(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocMB:    mem.HeapAlloc / 1024 / 1024,
		GlobalSettings: settings,
	})
}

// Logs returns the 100 most recent audit entries, newest first
// GET /api/admin/logs
func (h *AdminSystemHandler) Logs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditLog.Recent(r.Context(), 100)
	if err != nil {
		response.InternalError(w, "Failed to load logs")
		return
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}
	response.JSON(w, http.StatusOK, entries)
}

// Maintenance toggles maintenance mode for the public and user surfaces.
// Admin routes stay reachable so the mode can be turned off again.
// POST /api/admin/settings/maintenance
func (h *AdminSystemHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	var req MaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to load settings")
		return
	}

	settings.MaintenanceMode = req.Enabled
	if err := h.settings.Put(r.Context(), settings); err != nil {
		response.InternalError(w, "Failed to update settings")
		return
	}

	state := "disabled"
	severity := models.SeverityInfo
	if req.Enabled {
		state = "enabled"
		severity = models.SeverityWarning
	}
	h.auditLog.Append(r.Context(), "Maintenance Mode", actorName(r),
		"Maintenance mode "+state, severity)

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Maintenance mode " + state,
		"settings": settings,
	})
}
