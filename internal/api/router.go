// Package api wires the HTTP surface: services, middleware, and routes.
package api

import (
	"log"

	"github.com/go-chi/chi/v5"

	"github.com/neuroflux/backend/internal/agent"
	"github.com/neuroflux/backend/internal/api/handlers"
	"github.com/neuroflux/backend/internal/audit"
	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/config"
	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/ledger"
	"github.com/neuroflux/backend/internal/mailer"
	"github.com/neuroflux/backend/internal/metrics"
	"github.com/neuroflux/backend/internal/middleware"
	"github.com/neuroflux/backend/internal/quota"
	"github.com/neuroflux/backend/internal/ratelimit"
	"github.com/neuroflux/backend/internal/repository"
	"github.com/neuroflux/backend/internal/store"
)

// NewRouter creates and configures the main router
func NewRouter(cfg *config.Config, s store.Store) *chi.Mux {
	r := chi.NewRouter()

	// Initialize repositories
	userRepo := repository.NewUserRepository(s)
	orgRepo := repository.NewOrgRepository(s)
	auditRepo := repository.NewAuditRepository(s)
	settingsRepo := repository.NewSettingsRepository(s)

	// Initialize services
	dir := directory.NewService(userRepo)
	ledgerService := ledger.NewService(orgRepo)
	auditLog := audit.NewLog(auditRepo, cfg.AuditLogMax)
	enforcer := quota.NewEnforcer(dir, cfg.FreeTierLimit)
	otpStore := auth.NewOTPStore()
	mail := mailer.NewSMTP(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass)
	agentClient := agent.NewClient(cfg.AgentAPIKey, cfg.AgentModel, cfg.AgentBaseURL)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	authMiddleware := auth.NewMiddleware(jwtService, dir)

	// Rate limiter: shared state through Redis when available, per-process
	// otherwise.
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.RateLimitPerMinute, ratelimit.DefaultWindow)
		if err != nil {
			log.Printf("[router] redis unavailable, using in-memory rate limiter: %v", err)
		} else {
			limiter = redisLimiter
		}
	}
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitPerMinute, ratelimit.DefaultWindow)
	}

	var collector *metrics.Collector
	if cfg.EnableMetrics {
		collector = metrics.NewCollector()
		if mem, ok := s.(*store.MemoryStore); ok {
			mem.SetSnapshotHook(collector.RecordSnapshotWrite)
		}
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(s)
	authHandler := handlers.NewAuthHandler(dir, jwtService, otpStore, mail, auditLog, settingsRepo)
	usageHandler := handlers.NewUsageHandler(enforcer, dir, auditLog)
	agentHandler := handlers.NewAgentHandler(enforcer, dir, agentClient, auditLog, collector)
	adminUserHandler := handlers.NewAdminUserHandler(dir, auditLog)
	adminOrgHandler := handlers.NewAdminOrgHandler(ledgerService, auditLog)
	adminSystemHandler := handlers.NewAdminSystemHandler(dir, ledgerService, auditLog, settingsRepo, s)

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORSWithOrigins(cfg.CORSOrigins))
	r.Use(middleware.RateLimit(limiter))
	if collector != nil {
		r.Use(collector.Instrument)
	}

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	if collector != nil {
		r.Method("GET", "/metrics", collector.Handler())
	}

	maintenance := middleware.Maintenance(settingsRepo)

	// Public auth endpoints
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(maintenance)
		r.Post("/signup-init", authHandler.SignupInit)
		r.Post("/verify", authHandler.Verify)
		r.Post("/login", authHandler.Login)
	})

	// Authenticated user endpoints
	r.Route("/api/user", func(r chi.Router) {
		r.Use(maintenance)
		r.Use(authMiddleware.Authenticate)
		r.Post("/usage/check", usageHandler.CheckUsage)
		r.Post("/usage/increment", usageHandler.IncrementUsage)
		r.Post("/upgrade", usageHandler.Upgrade)
		r.Post("/agent", agentHandler.Transform)
	})

	// Administrative endpoints. Not gated by maintenance mode so the mode can
	// always be turned off again.
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

	return r
}
