// Package config provides application configuration management.
// It loads configuration from environment variables with sensible defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string
	Env  string

	// Storage settings. DatabaseURL selects durable mode when set and
	// reachable; DataFile backs cache mode otherwise.
	DatabaseURL string
	DataFile    string

	// Redis settings (optional, rate limiting only)
	RedisURL string

	// Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Outbound email
	EmailHost string
	EmailPort int
	EmailUser string
	EmailPass string

	// AI provider
	AgentAPIKey  string
	AgentModel   string
	AgentBaseURL string

	// CORS
	CORSOrigins []string

	// Rate limiting
	RateLimitPerMinute int

	// Quota and retention bounds
	FreeTierLimit int
	AuditLogMax   int
	SeedOrgCount  int

	// Feature flags
	EnableMetrics bool
}

// Load returns a new Config struct populated from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "5003"),
		Env:                getEnv("ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DataFile:           getEnv("DATA_FILE", "data/neuroflux.json"),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", "neuroflux-dev-secret"),
		JWTExpiry:          getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		EmailHost:          getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:          getEnvInt("EMAIL_PORT", 587),
		EmailUser:          getEnv("EMAIL_USER", ""),
		EmailPass:          getEnv("EMAIL_PASS", ""),
		AgentAPIKey:        getEnv("AGENT_API_KEY", ""),
		AgentModel:         getEnv("AGENT_MODEL", "llama-3.3-70b-versatile"),
		AgentBaseURL:       getEnv("AGENT_BASE_URL", ""),
		CORSOrigins:        getEnvSlice("CORS_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		FreeTierLimit:      getEnvInt("FREE_TIER_LIMIT", 3),
		AuditLogMax:        getEnvInt("AUDIT_LOG_MAX", 1000),
		SeedOrgCount:       getEnvInt("SEED_ORG_COUNT", 5),
		EnableMetrics:      getEnvBool("ENABLE_METRICS", false),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration retrieves a duration environment variable or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvSlice retrieves a comma-separated environment variable as a slice.
func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
