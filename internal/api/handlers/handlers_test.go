package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/backend/internal/agent"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/ledger"
	"github.com/neuroflux/backend/internal/middleware"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/quota"
	"github.com/neuroflux/backend/internal/repository"
	"github.com/neuroflux/backend/internal/store"
)

const testFreeLimit = 3

// captureSender records the last email instead of delivering it
type captureSender struct {
	to      string
	subject string
	body    string
}

func (c *captureSender) Send(to, subject, htmlBody string) error {
	c.to, c.subject, c.body = to, subject, htmlBody
	return nil
}

// lastCode extracts the 6-digit verification code from the captured email
func (c *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	code := regexp.MustCompile(`\d{6}`).FindString(c.body)
	require.NotEmpty(t, code, "verification email should carry a 6-digit code")
	return code
}

// testEnv wires the full HTTP surface over a cache-mode store
type testEnv struct {
	router    *chi.Mux
	mail      *captureSender
	directory *directory.Service
	ledger    *ledger.Service
	settings  *repository.SettingsRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.OpenMemory(filepath.Join(t.TempDir(), "data.json"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	userRepo := repository.NewUserRepository(s)
	orgRepo := repository.NewOrgRepository(s)
	auditRepo := repository.NewAuditRepository(s)
	settingsRepo := repository.NewSettingsRepository(s)

	dir := directory.NewService(userRepo)
	ledgerService := ledger.NewService(orgRepo)
	auditLog := audit.NewLog(auditRepo, 100)
	enforcer := quota.NewEnforcer(dir, testFreeLimit)
	otpStore := auth.NewOTPStore()
	mail := &captureSender{}
	agentClient := agent.NewClient("", "", "") // not configured

	jwtService := auth.NewJWTService("test-secret", time.Hour)
	authMiddleware := auth.NewMiddleware(jwtService, dir)

	healthHandler := NewHealthHandler(s)
	authHandler := NewAuthHandler(dir, jwtService, otpStore, mail, auditLog, settingsRepo)
	usageHandler := NewUsageHandler(enforcer, dir, auditLog)
	agentHandler := NewAgentHandler(enforcer, dir, agentClient, auditLog, nil)
	adminUserHandler := NewAdminUserHandler(dir, auditLog)
	adminOrgHandler := NewAdminOrgHandler(ledgerService, auditLog)
	adminSystemHandler := NewAdminSystemHandler(dir, ledgerService, auditLog, settingsRepo, s)

	maintenance := middleware.Maintenance(settingsRepo)

	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(maintenance)
		r.Post("/signup-init", authHandler.SignupInit)
		r.Post("/verify", authHandler.Verify)
		r.Post("/login", authHandler.Login)
	})
	r.Route("/api/user", func(r chi.Router) {
		r.Use(maintenance)
		r.Use(authMiddleware.Authenticate)
		r.Post("/usage/check", usageHandler.CheckUsage)
		r.Post("/usage/increment", usageHandler.IncrementUsage)
		r.Post("/upgrade", usageHandler.Upgrade)
		r.Post("/agent", agentHandler.Transform)
	})
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware.RequireAdmin)
		r.Get("/stats", adminSystemHandler.Stats)
		r.Get("/logs", adminSystemHandler.Logs)
		r.Post("/settings/maintenance", adminSystemHandler.Maintenance)
		r.Get("/users", adminUserHandler.List)
		r.Post("/users", adminUserHandler.Create)
		r.Get("/users/{id}/details", adminUserHandler.Details)
		r.Delete("/users/{id}", adminUserHandler.Delete)
		r.Get("/organizations", adminOrgHandler.List)
		r.Post("/organizations", adminOrgHandler.Provision)
		r.Delete("/organizations/{id}", adminOrgHandler.Revoke)
		r.Post("/organizations/{id}/transactions", adminOrgHandler.RecordTransaction)
		r.Get("/analytics/revenue", adminOrgHandler.Revenue)
	})

	return &testEnv{
		router:    r,
		mail:      mail,
		directory: dir,
		ledger:    ledgerService,
		settings:  settingsRepo,
	}
}

// do performs a request against the router and returns the recorder
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON response body
func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

// signupAndLogin registers a verified user through the full OTP flow and
// returns a session token.
func (e *testEnv) signupAndLogin(t *testing.T, name, email, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/signup-init", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{
		"email": email, "code": e.mail.lastCode(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// adminToken creates an admin account directly and returns a session token
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	hash, err := auth.HashPassword("admin-password")
	require.NoError(t, err)
	_, err = e.directory.Register(context.Background(), "Root Admin", "admin@example.com", hash, models.RoleAdmin)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "admin-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AuthResponse
	decode(t, rec, &resp)
	return resp.Token
}
