// This file implements the subscription service: plan changes, lifecycle
// transitions, and billing-period usage resets.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/printforge/printforge/internal/domain"
	"github.com/printforge/printforge/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService defines operations on user subscriptions.
type SubscriptionService interface {
	// GetByUser returns the user's subscription.
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// CreateForUser provisions the default free subscription for a newly
	// registered user.
	CreateForUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// ChangePlan moves the subscription to a different tier. Upgrades
	// keep the current usage counter; downgrades do too, which may leave
	// the user over the new limit until the next reset.
	ChangePlan(ctx context.Context, userID uuid.UUID, newPlan domain.PlanType) (*domain.Subscription, error)

	// Cancel stops the subscription from gating new design creation.
	Cancel(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// Reactivate returns a canceled subscription to active and starts a
	// fresh billing window.
	Reactivate(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// ResetUsage zeroes the usage counter and advances the billing
	// window for a single user. The billing collaborator entry point.
	ResetUsage(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// RolloverDuePeriods resets every active subscription whose billing
	// window has elapsed and returns how many were reset.
	RolloverDuePeriods(ctx context.Context) (int, error)
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store repository.Store, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		store:  store,
		logger: logger,
	}
}

// GetByUser returns the user's subscription.
func (s *subscriptionService) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.store.GetSubscriptionByUser(ctx, userID)
}

// CreateForUser provisions the default free subscription.
func (s *subscriptionService) CreateForUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	const op = "subscription.create_for_user"

	sub := domain.NewSubscription(userID)
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, domain.Internal(err, op, "failed to create subscription")
	}

	s.logger.Info("Subscription created", "user_id", userID, "plan", sub.Plan)
	return sub, nil
}

// ChangePlan routes to the upgrade or downgrade transition based on tier
// order. The row is locked so a concurrent create cannot interleave with
// the plan change.
func (s *subscriptionService) ChangePlan(ctx context.Context, userID uuid.UUID, newPlan domain.PlanType) (*domain.Subscription, error) {
	const op = "subscription.change_plan"

	if !newPlan.IsValid() {
		return nil, domain.Invalid(op, "unknown plan: "+newPlan.String())
	}

	return s.mutate(ctx, userID, func(sub *domain.Subscription) error {
		if newPlan.HigherThan(sub.Plan) {
			return sub.UpgradePlan(newPlan)
		}
		return sub.DowngradePlan(newPlan)
	})
}

// Cancel marks the subscription canceled.
func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *domain.Subscription) error {
		return sub.Cancel()
	})
}

// Reactivate returns a canceled subscription to active.
func (s *subscriptionService) Reactivate(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *domain.Subscription) error {
		return sub.Reactivate()
	})
}

// ResetUsage zeroes the usage counter and starts a new billing window.
func (s *subscriptionService) ResetUsage(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *domain.Subscription) error {
		sub.ResetMonthlyUsage()
		return nil
	})
}

// RolloverDuePeriods resets expired billing windows in batches. Each batch
// runs in its own transaction; rows locked by a concurrent sweeper are
// skipped rather than waited on.
func (s *subscriptionService) RolloverDuePeriods(ctx context.Context) (int, error) {
	const op = "subscription.rollover_due_periods"
	const batchSize = 100

	total := 0
	for {
		n := 0
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			subs, err := tx.ListSubscriptionsDueReset(ctx, batchSize)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				sub.ResetMonthlyUsage()
				if err := tx.UpdateSubscription(ctx, sub); err != nil {
					return domain.Internal(err, op, "failed to reset subscription")
				}
			}
			n = len(subs)
			return nil
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("Billing periods rolled over", "count", total)
	}
	return total, nil
}

// mutate loads the subscription under a row lock, applies fn, and persists
// the result in the same transaction.
func (s *subscriptionService) mutate(ctx context.Context, userID uuid.UUID, fn func(*domain.Subscription) error) (*domain.Subscription, error) {
	const op = "subscription.mutate"

	var sub *domain.Subscription
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		sub, err = tx.GetSubscriptionByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return domain.Internal(err, op, "failed to update subscription")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
