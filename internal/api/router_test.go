package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/backend/internal/config"
	"github.com/neuroflux/backend/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:               "0",
		Env:                "test",
		DataFile:           filepath.Join(t.TempDir(), "data.json"),
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		CORSOrigins:        []string{"*"},
		RateLimitPerMinute: 1000,
		FreeTierLimit:      3,
		AuditLogMax:        100,
		SeedOrgCount:       2,
		EnableMetrics:      true,
	}
}

func TestRouterSmoke(t *testing.T) {
	cfg := testConfig(t)
	s, err := store.OpenMemory(cfg.DataFile, cfg.SeedOrgCount)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	router := NewRouter(cfg, s)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/api/user/usage/check", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/stats", http.StatusUnauthorized},
		{http.MethodGet, "/does-not-exist", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouterMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableMetrics = false

	s, err := store.OpenMemory(cfg.DataFile, cfg.SeedOrgCount)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	router := NewRouter(cfg, s)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
