package models

import (
	"time"
)

// User represents an individual account in the system.
// PasswordHash is serialized for persistence; API handlers must use
// response types that omit it.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash"`
	Role          string    `json:"role"`
	Plan          string    `json:"plan"`
	UsageCount    int       `json:"usage_count"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
	CurrentAction string    `json:"current_action,omitempty"`
}

// User role constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User plan constants
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// IsValidPlan checks if a user plan is valid
func IsValidPlan(plan string) bool {
	switch plan {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	default:
		return false
	}
}

// IsPaidPlan reports whether a plan has unlimited gated usage
func IsPaidPlan(plan string) bool {
	return plan == PlanPro || plan == PlanEnterprise
}
