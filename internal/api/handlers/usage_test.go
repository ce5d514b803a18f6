package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/backend/internal/quota"
)

func TestUsageCheckAndIncrement(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "Alice", "alice@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/api/user/usage/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision quota.Decision
	decode(t, rec, &decision)
	assert.True(t, decision.Allowed)
	assert.Zero(t, decision.Usage)
	assert.Equal(t, testFreeLimit, decision.Limit)

	for i := 0; i < testFreeLimit; i++ {
		rec = env.do(t, http.MethodPost, "/api/user/usage/increment", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/user/usage/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &decision)
	assert.False(t, decision.Allowed, "free tier is exhausted")
	assert.Equal(t, testFreeLimit, decision.Usage)
}

func TestUpgradeLiftsLimit(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "Alice", "alice@example.com", "password123")

	for i := 0; i < testFreeLimit; i++ {
		rec := env.do(t, http.MethodPost, "/api/user/usage/increment", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Default plan for an empty body field is pro
	rec := env.do(t, http.MethodPost, "/api/user/upgrade", token, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)

	var decision quota.Decision
	rec = env.do(t, http.MethodPost, "/api/user/usage/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &decision)
	assert.True(t, decision.Allowed)
	assert.Equal(t, quota.Unlimited, decision.Limit)
	assert.Equal(t, testFreeLimit, decision.Usage, "usage is never reset by an upgrade")
}

func TestUpgradeUnknownPlan(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "Alice", "alice@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/api/user/upgrade", token, map[string]string{"plan": "platinum"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentQuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "Alice", "alice@example.com", "password123")

	for i := 0; i < testFreeLimit; i++ {
		rec := env.do(t, http.MethodPost, "/api/user/usage/increment", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/user/agent", token, map[string]string{
		"instruction": "summarize", "input": "hello",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "quota_exceeded", body["error"])
	assert.EqualValues(t, testFreeLimit, body["usage"])
	assert.EqualValues(t, testFreeLimit, body["limit"])
}

func TestAgentNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "Alice", "alice@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/api/user/agent", token, map[string]string{
		"instruction": "summarize", "input": "hello",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_unavailable")

	// The failed call refunded its unit; no quota was burned
	rec = env.do(t, http.MethodPost, "/api/user/usage/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision quota.Decision
	decode(t, rec, &decision)
	assert.Zero(t, decision.Usage)
}

func TestAgentValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "Alice", "alice@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/api/user/agent", token, map[string]string{"input": "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
