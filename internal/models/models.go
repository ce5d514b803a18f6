// Package models defines the persisted entities shared across the backend.
package models

import (
	"time"
)

// Organization plan constants. These are tenant tiers, distinct from the
// per-user subscription plans.
const (
	OrgPlanStarter    = "Starter"
	OrgPlanEnterprise = "Enterprise"
	OrgPlanNeuroLink  = "NeuroLink"
)

// Organization status constants
const (
	OrgStatusActive    = "Active"
	OrgStatusSuspended = "Suspended"
)

// Organization represents a billable tenant account
type Organization struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Plan                string        `json:"plan"`
	Status              string        `json:"status"`
	LicenseKey          string        `json:"license_key"`
	MaxUsers            int           `json:"max_users"`
	RenewalCount        int           `json:"renewal_count"`
	TotalRevenue        int           `json:"total_revenue"`
	SubscriptionHistory []Transaction `json:"subscription_history"`
	CreatedAt           time.Time     `json:"created_at"`
}

// Transaction types
const (
	TxActivation = "Activation"
	TxRenewal    = "Renewal"
)

// Transaction is an immutable ledger line item. OrgName is a denormalized
// snapshot of the organization name at the time of the transaction.
type Transaction struct {
	ID      string    `json:"id"`
	OrgID   string    `json:"org_id"`
	OrgName string    `json:"org_name"`
	Amount  int       `json:"amount"`
	Plan    string    `json:"plan"`
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
}

// Audit log severity levels
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// AuditLogEntry is a single append-only audit record
type AuditLogEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
	Severity  string    `json:"severity"`
}

// GlobalSettings is the process-wide singleton configuration record
type GlobalSettings struct {
	MaintenanceMode bool      `json:"maintenance_mode"`
	AllowSignups    bool      `json:"allow_signups"`
	SystemVersion   string    `json:"system_version"`
	LastBackup      time.Time `json:"last_backup"`
}

// DefaultGlobalSettings returns the settings a fresh deployment starts with
func DefaultGlobalSettings() *GlobalSettings {
	return &GlobalSettings{
		MaintenanceMode: false,
		AllowSignups:    true,
		SystemVersion:   "2.5.0",
		LastBackup:      time.Now().UTC(),
	}
}
