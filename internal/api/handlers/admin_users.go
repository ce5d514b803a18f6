package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/models"
)

// AdminUserHandler handles administrative user management
type AdminUserHandler struct {
	directory *directory.Service
	auditLog  *audit.Log
}

// NewAdminUserHandler creates a new admin user handler
func NewAdminUserHandler(dir *directory.Service, auditLog *audit.Log) *AdminUserHandler {
	return &AdminUserHandler{directory: dir, auditLog: auditLog}
}

// CreateUserRequest represents an administrative user creation
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LiveState is a snapshot of a user's current session activity
type LiveState struct {
	LastAction      string    `json:"last_action"`
	LastActive      time.Time `json:"last_active"`
	SessionDuration string    `json:"session_duration"`
	Online          bool      `json:"online"`
}

// UserDetailsResponse bundles a user with their audit trail and live state
type UserDetailsResponse struct {
	User      *UserResponse          `json:"user"`
	Logs      []models.AuditLogEntry `json:"logs"`
	LiveState LiveState              `json:"live_state"`
}

// List returns every user, password hashes omitted
// GET /api/admin/users
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.List(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list users")
		return
	}

	out := make([]*UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	response.JSON(w, http.StatusOK, out)
}

// Create registers a user with an explicit role. Audited as a warning:
// administrative account creation is a privileged path.
// POST /api/admin/users
func (h *AdminUserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if req.Name == "" {
		response.ValidationError(w, "Name is required")
		return
	}
	if !isValidEmail(req.Email) {
		response.Error(w, http.StatusBadRequest, "invalid_email", "Invalid email address")
		return
	}
	if !models.IsValidRole(req.Role) {
		response.ValidationError(w, "Unknown role: "+req.Role)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		response.Error(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.InternalError(w, "Failed to create user")
		return
	}

	user, err := h.directory.Register(r.Context(), req.Name, req.Email, passwordHash, req.Role)
	if err != nil {
		if errors.Is(err, directory.ErrEmailTaken) {
			response.Error(w, http.StatusConflict, "user_exists", "An account with this email already exists")
			return
		}
		log.Printf("[admin] user creation for %s failed: %v", req.Email, err)
		response.InternalError(w, "Failed to create user")
		return
	}

	h.auditLog.Append(r.Context(), "Admin Create User", actorName(r),
		"Created "+req.Role+" "+req.Email, models.SeverityWarning)

	response.JSON(w, http.StatusCreated, NewUserResponse(user))
}

// Details returns a user with their audit entries and a live-state snapshot
// GET /api/admin/users/{id}/details
func (h *AdminUserHandler) Details(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.directory.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to load user")
		return
	}

	logs, err := h.auditLog.ForUser(r.Context(), user.Name)
	if err != nil {
		response.InternalError(w, "Failed to load user activity")
		return
	}
	if logs == nil {
		logs = []models.AuditLogEntry{}
	}

	response.JSON(w, http.StatusOK, UserDetailsResponse{
		User: NewUserResponse(user),
		Logs: logs,
		LiveState: LiveState{
			LastAction:      user.CurrentAction,
			LastActive:      user.LastActive,
			SessionDuration: sessionDuration(user.LastActive),
			Online:          time.Since(user.LastActive) < 15*time.Minute,
		},
	})
}

// Delete removes a user permanently
// DELETE /api/admin/users/{id}
func (h *AdminUserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.directory.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to delete user")
		return
	}

	h.auditLog.Append(r.Context(), "Admin Delete User", actorName(r),
		"Deleted user "+user.Email, models.SeverityWarning)

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "User deleted",
	})
}

// sessionDuration formats the time since the user's last login-ish activity
func sessionDuration(lastActive time.Time) string {
	if lastActive.IsZero() {
		return "0 mins"
	}
	mins := int(time.Since(lastActive).Minutes())
	if mins < 0 {
		mins = 0
	}
	return strconv.Itoa(mins) + " mins"
}

// actorName resolves the acting admin's identity for audit entries
func actorName(r *http.Request) string {
	claims := auth.GetClaims(r.Context())
	if claims == nil || claims.Email == "" {
		return "admin"
	}
	return claims.Email
}
