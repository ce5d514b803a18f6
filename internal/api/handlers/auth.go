// Package handlers implements the HTTP endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/mailer"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
)

// AuthHandler handles signup and login endpoints
type AuthHandler struct {
	directory  *directory.Service
	jwtService *auth.JWTService
	otpStore   *auth.OTPStore
	mail       mailer.Sender
	auditLog   *audit.Log
	settings   *repository.SettingsRepository
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	dir *directory.Service,
	jwtService *auth.JWTService,
	otpStore *auth.OTPStore,
	mail mailer.Sender,
	auditLog *audit.Log,
	settings *repository.SettingsRepository,
) *AuthHandler {
	return &AuthHandler{
		directory:  dir,
		jwtService: jwtService,
		otpStore:   otpStore,
		mail:       mail,
		auditLog:   auditLog,
		settings:   settings,
	}
}

// SignupInitRequest represents the first step of registration
type SignupInitRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyRequest completes registration with the emailed code
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	User      *UserResponse `json:"user"`
}

// UserResponse represents a user in API responses. The password hash never
// leaves the persistence layer.
type UserResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Plan          string    `json:"plan"`
	UsageCount    int       `json:"usage_count"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
	CurrentAction string    `json:"current_action,omitempty"`
}

// NewUserResponse strips a user record for API output
func NewUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		Plan:          user.Plan,
		UsageCount:    user.UsageCount,
		Verified:      user.Verified,
		CreatedAt:     user.CreatedAt,
		LastActive:    user.LastActive,
		CurrentAction: user.CurrentAction,
	}
}

// SignupInit starts registration: the user record is not created yet, a
// verification code is emailed and the signup parked until Verify.
// POST /api/auth/signup-init
func (h *AuthHandler) SignupInit(w http.ResponseWriter, r *http.Request) {
	var req SignupInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" {
		response.ValidationError(w, "Name is required")
		return
	}
	if !isValidEmail(req.Email) {
		response.Error(w, http.StatusBadRequest, "invalid_email", "Invalid email address")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		response.Error(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to process registration")
		return
	}
	if !settings.AllowSignups {
		response.Error(w, http.StatusForbidden, "signups_disabled", "New registrations are currently disabled")
		return
	}

	inUse, err := h.directory.EmailInUse(r.Context(), req.Email)
	if err != nil {
		response.InternalError(w, "Failed to process registration")
		return
	}
	if inUse {
		response.Error(w, http.StatusConflict, "user_exists", "An account with this email already exists")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.InternalError(w, "Failed to process registration")
		return
	}

	h.otpStore.Sweep()
	code, err := h.otpStore.Begin(req.Name, req.Email, passwordHash)
	if err != nil {
		response.InternalError(w, "Failed to process registration")
		return
	}

	subject, body := mailer.VerificationEmail(code)
	if err := h.mail.Send(req.Email, subject, body); err != nil {
		log.Printf("[auth] verification email to %s failed: %v", req.Email, err)
		response.InternalError(w, "Failed to send verification email")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Verification code sent",
	})
}

// Verify completes registration: a valid code creates the verified user and
// returns a session token.
// POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	pending, err := h.otpStore.Consume(strings.TrimSpace(req.Email), strings.TrimSpace(req.Code))
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "invalid_code", "Invalid or expired verification code")
		return
	}

	user, err := h.directory.Register(r.Context(), pending.Name, pending.Email, pending.PasswordHash, models.RoleUser)
	if err != nil {
		if errors.Is(err, directory.ErrEmailTaken) {
			response.Error(w, http.StatusConflict, "user_exists", "An account with this email already exists")
			return
		}
		log.Printf("[auth] registration for %s failed: %v", pending.Email, err)
		response.InternalError(w, "Failed to create account")
		return
	}

	h.auditLog.Append(r.Context(), "User Signup", user.Name,
		"New user verified: "+user.Email, models.SeverityInfo)

	h.writeAuthResponse(w, http.StatusCreated, user)
}

// Login authenticates a user and returns a session token
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "Invalid request body")
		return
	}

	user, err := h.directory.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			// Don't reveal whether the email exists
			response.Error(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		response.InternalError(w, "Failed to log in")
		return
	}

	h.directory.RecordActivity(r.Context(), user.ID, "Logged In")

	h.auditLog.Append(r.Context(), "User Login", user.Name,
		"Successful authentication", models.SeverityInfo)

	h.writeAuthResponse(w, http.StatusOK, user)
}

func (h *AuthHandler) writeAuthResponse(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.jwtService.Generate(user)
	if err != nil {
		response.InternalError(w, "Failed to generate token")
		return
	}

	response.JSON(w, status, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.GetExpiration().Seconds()),
		User:      NewUserResponse(user),
	})
}

// isValidEmail validates an email address format
func isValidEmail(email string) bool {
	// Simple email regex - not perfect but good enough for basic validation
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}
