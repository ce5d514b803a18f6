// Package quota gates AI-backed operations on per-user usage limits. Quota
// state is not stored separately: it reads and writes the usageCount field
// that the directory owns, so there is a single source of truth.
package quota

import (
	"context"
	"fmt"
	"log"

	"github.com/neuroflux/backend/internal/directory"
	"github.com/neuroflux/backend/internal/models"
)

// Unlimited marks a plan without a usage cap
const Unlimited = -1

// ExceededError is returned when a free-tier user is over the limit. It is a
// distinguished type so handlers can route clients to the upgrade flow
// instead of a generic failure.
type ExceededError struct {
	Usage int
	Limit int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("usage limit reached (%d/%d)", e.Usage, e.Limit)
}

// Decision is the result of an admission check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Usage   int    `json:"usage"`
	Limit   int    `json:"limit"` // -1 means unlimited
	Plan    string `json:"plan"`
}

// Enforcer performs admission control for gated operations
type Enforcer struct {
	directory *directory.Service
	freeLimit int
}

// NewEnforcer creates an enforcer with the given free-tier limit
func NewEnforcer(dir *directory.Service, freeLimit int) *Enforcer {
	return &Enforcer{directory: dir, freeLimit: freeLimit}
}

// LimitFor returns the usage limit for a plan: the free tier gets the fixed
// limit, every paid plan is unlimited.
func (e *Enforcer) LimitFor(plan string) int {
	if models.IsPaidPlan(plan) {
		return Unlimited
	}
	return e.freeLimit
}

// Check reports whether the user may perform another gated operation
func (e *Enforcer) Check(ctx context.Context, userID string) (*Decision, error) {
	user, err := e.directory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.decide(user), nil
}

// Increment records one completed gated operation. It is called after the
// operation succeeds and does not re-validate admission; the HTTP surface
// keeps the original check-then-increment semantics.
func (e *Enforcer) Increment(ctx context.Context, userID string) (*Decision, error) {
	user, err := e.directory.IncrementUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.decide(user), nil
}

// TryConsume atomically re-checks admission and increments, both under the
// user's lock. Server-side gated operations use this path so a burst of
// concurrent requests cannot over-admit a free-tier user.
func (e *Enforcer) TryConsume(ctx context.Context, userID string) (*Decision, error) {
	user, consumed, err := e.directory.TryConsumeUsage(ctx, userID, func(u *models.User) bool {
		limit := e.LimitFor(u.Plan)
		return limit == Unlimited || u.UsageCount < limit
	})
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, &ExceededError{Usage: user.UsageCount, Limit: e.LimitFor(user.Plan)}
	}
	return e.decide(user), nil
}

// Refund returns a unit charged by TryConsume when the gated operation
// itself failed, so a provider outage does not burn the user's quota.
// Best-effort: a failed refund is logged and never surfaced.
func (e *Enforcer) Refund(ctx context.Context, userID string) {
	if _, err := e.directory.RefundUsage(ctx, userID); err != nil {
		log.Printf("[quota] refund for %s failed: %v", userID, err)
	}
}

func (e *Enforcer) decide(user *models.User) *Decision {
	limit := e.LimitFor(user.Plan)
	return &Decision{
		Allowed: limit == Unlimited || user.UsageCount < limit,
		Usage:   user.UsageCount,
		Limit:   limit,
		Plan:    user.Plan,
	}
}
