// Package domain contains core business types and interfaces.
//
// This file defines the Subscription domain type: the per-user plan that
// gates how many designs may be created each billing period.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Plan Type
// =============================================================================

// PlanType identifies a subscription plan tier.
type PlanType string

const (
	PlanFree         PlanType = "free"
	PlanStarter      PlanType = "starter"
	PlanProfessional PlanType = "professional"
	PlanEnterprise   PlanType = "enterprise"
)

// UnlimitedDesigns is the sentinel limit for plans with no monthly cap.
const UnlimitedDesigns = -1

// PlanLimits maps plan tiers to their monthly design limit.
// UnlimitedDesigns (-1) denotes no cap.
var PlanLimits = map[PlanType]int{
	PlanFree:         10,
	PlanStarter:      100,
	PlanProfessional: 1000,
	PlanEnterprise:   UnlimitedDesigns,
}

// planOrder defines the total order over plan tiers used by plan changes.
var planOrder = []PlanType{PlanFree, PlanStarter, PlanProfessional, PlanEnterprise}

// String returns the string representation of the plan.
func (p PlanType) String() string {
	return string(p)
}

// IsValid returns true if the plan is a recognized value.
func (p PlanType) IsValid() bool {
	_, ok := PlanLimits[p]
	return ok
}

// MonthlyLimit returns the plan's monthly design limit, defaulting to the
// free tier for unknown plans.
func (p PlanType) MonthlyLimit() int {
	if limit, ok := PlanLimits[p]; ok {
		return limit
	}
	return PlanLimits[PlanFree]
}

// HigherThan reports whether p is a strictly higher tier than other.
func (p PlanType) HigherThan(other PlanType) bool {
	return p.tierIndex() > other.tierIndex()
}

// tierIndex returns the plan's position in the tier order, or -1.
func (p PlanType) tierIndex() int {
	for i, plan := range planOrder {
		if plan == p {
			return i
		}
	}
	return -1
}

// =============================================================================
// Subscription Status
// =============================================================================

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
)

// String returns the string representation of the status.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusCanceled,
		SubscriptionStatusPastDue, SubscriptionStatusTrialing:
		return true
	}
	return false
}

// =============================================================================
// Subscription Domain Type
// =============================================================================

// BillingPeriodDays is the fixed billing window length.
const BillingPeriodDays = 30

// Subscription represents a user's plan, status, and usage counters.
// One subscription exists per user, created at registration.
//
// DesignsThisMonth only moves through IncrementUsage and
// ResetMonthlyUsage; callers must not bump it directly.
type Subscription struct {
	ID                 uuid.UUID          // Unique identifier
	UserID             uuid.UUID          // Owner of the subscription
	Plan               PlanType           // Current plan tier
	Status             SubscriptionStatus // Current lifecycle state
	DesignsThisMonth   int                // Usage counter for the current period
	CurrentPeriodStart *time.Time         // Billing window start
	CurrentPeriodEnd   *time.Time         // Billing window end
	BillingCustomerRef *string            // Opaque external billing customer reference
	BillingSubRef      *string            // Opaque external billing subscription reference
	CreatedAt          time.Time          // When the subscription was created
	UpdatedAt          time.Time          // When the subscription was last modified
}

// NewSubscription creates a subscription for a newly registered user:
// free plan, active, zero usage, 30-day billing window starting now.
func NewSubscription(userID uuid.UUID) *Subscription {
	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 0, BillingPeriodDays)

	return &Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		Plan:               PlanFree,
		Status:             SubscriptionStatusActive,
		DesignsThisMonth:   0,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IsActive returns true if the subscription may gate new design creation.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// HasQuota returns true if the subscription may mint another design this
// billing period. Pure check, no side effects.
func (s *Subscription) HasQuota() bool {
	limit := s.Plan.MonthlyLimit()
	if limit == UnlimitedDesigns {
		return true
	}
	return s.DesignsThisMonth < limit
}

// RemainingQuota returns the number of designs remaining this period, or
// UnlimitedDesigns for uncapped plans.
func (s *Subscription) RemainingQuota() int {
	limit := s.Plan.MonthlyLimit()
	if limit == UnlimitedDesigns {
		return UnlimitedDesigns
	}
	remaining := limit - s.DesignsThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ValidateCanCreateDesign checks that a new design may be created:
// the subscription must be active, then have quota, in that order.
func (s *Subscription) ValidateCanCreateDesign() error {
	const op = "subscription.validate_can_create_design"

	if !s.IsActive() {
		return InactiveSubscription(op, s.Status)
	}
	if !s.HasQuota() {
		return QuotaExceeded(op, s.Plan, s.DesignsThisMonth, s.Plan.MonthlyLimit())
	}
	return nil
}

// IncrementUsage bumps the monthly design counter. This is the single
// gate for counter mutation; it fails without mutating when quota is
// already exhausted.
func (s *Subscription) IncrementUsage() error {
	const op = "subscription.increment_usage"

	if !s.HasQuota() {
		return QuotaExceeded(op, s.Plan, s.DesignsThisMonth, s.Plan.MonthlyLimit())
	}

	s.DesignsThisMonth++
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetMonthlyUsage zeroes the usage counter and advances the billing
// window by a fixed 30-day period. Called by the billing collaborator at
// period renewal; it is the only operation allowed to decrease the counter.
func (s *Subscription) ResetMonthlyUsage() {
	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 0, BillingPeriodDays)

	s.DesignsThisMonth = 0
	s.CurrentPeriodStart = &now
	s.CurrentPeriodEnd = &periodEnd
	s.UpdatedAt = now
}

// UpgradePlan moves the subscription to a strictly higher tier.
func (s *Subscription) UpgradePlan(newPlan PlanType) error {
	const op = "subscription.upgrade_plan"

	currentIdx, newIdx := s.Plan.tierIndex(), newPlan.tierIndex()
	if newIdx < 0 {
		return Invalid(op, "unknown plan: "+newPlan.String())
	}
	if newIdx <= currentIdx {
		return Errorf(EINVALID, op, "cannot upgrade from %s to %s", s.Plan, newPlan)
	}

	s.Plan = newPlan
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// DowngradePlan moves the subscription to a strictly lower tier.
func (s *Subscription) DowngradePlan(newPlan PlanType) error {
	const op = "subscription.downgrade_plan"

	currentIdx, newIdx := s.Plan.tierIndex(), newPlan.tierIndex()
	if newIdx < 0 {
		return Invalid(op, "unknown plan: "+newPlan.String())
	}
	if newIdx >= currentIdx {
		return Errorf(EINVALID, op, "cannot downgrade from %s to %s", s.Plan, newPlan)
	}

	s.Plan = newPlan
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel cancels the subscription. Access is not revoked immediately;
// only design creation gating changes.
func (s *Subscription) Cancel() error {
	const op = "subscription.cancel"

	if s.Status == SubscriptionStatusCanceled {
		return Conflict(op, "subscription is already canceled")
	}

	s.Status = SubscriptionStatusCanceled
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Reactivate restores a canceled subscription to active.
func (s *Subscription) Reactivate() error {
	const op = "subscription.reactivate"

	if s.Status != SubscriptionStatusCanceled {
		return InvalidTransition(op, s.Status.String(), SubscriptionStatusActive.String())
	}

	s.Status = SubscriptionStatusActive
	s.UpdatedAt = time.Now().UTC()
	return nil
}
