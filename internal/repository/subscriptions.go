package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/printforge/printforge/internal/domain"
)

const subscriptionColumns = `
	id, user_id, plan, status, designs_this_month,
	current_period_start, current_period_end,
	billing_customer_ref, billing_sub_ref,
	created_at, updated_at`

// CreateSubscription persists a subscription. One row exists per user.
func (q *Queries) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	const op = "repository.create_subscription"

	_, err := q.db.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan, status, designs_this_month,
			current_period_start, current_period_end,
			billing_customer_ref, billing_sub_ref,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.UserID, sub.Plan, sub.Status, sub.DesignsThisMonth,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.BillingCustomerRef, sub.BillingSubRef,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to create subscription")
	}
	return nil
}

// GetSubscriptionByUser fetches a user's subscription.
func (q *Queries) GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return q.getSubscriptionByUser(ctx, userID, false)
}

// GetSubscriptionByUserForUpdate fetches a user's subscription with a row
// lock held until the surrounding transaction ends. This is the
// single-writer discipline for the quota check-then-increment.
func (q *Queries) GetSubscriptionByUserForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return q.getSubscriptionByUser(ctx, userID, true)
}

func (q *Queries) getSubscriptionByUser(ctx context.Context, userID uuid.UUID, forUpdate bool) (*domain.Subscription, error) {
	const op = "repository.get_subscription"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var s domain.Subscription
	err := q.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.Plan, &s.Status, &s.DesignsThisMonth,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.BillingCustomerRef, &s.BillingSubRef,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "subscription", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to fetch subscription")
	}
	return &s, nil
}

// ListSubscriptionsDueReset returns active subscriptions whose billing
// window has elapsed, locked for the surrounding transaction. Rows locked
// by another sweeper are skipped.
func (q *Queries) ListSubscriptionsDueReset(ctx context.Context, limit int32) ([]*domain.Subscription, error) {
	const op = "repository.list_subscriptions_due_reset"

	rows, err := q.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = $1
		  AND current_period_end IS NOT NULL
		  AND current_period_end <= NOW()
		ORDER BY current_period_end ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		domain.SubscriptionStatusActive, limit,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list due subscriptions")
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Plan, &s.Status, &s.DesignsThisMonth,
			&s.CurrentPeriodStart, &s.CurrentPeriodEnd,
			&s.BillingCustomerRef, &s.BillingSubRef,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, domain.Internal(err, op, "failed to scan subscription")
		}
		subs = append(subs, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read subscriptions")
	}
	return subs, nil
}

// UpdateSubscription persists entity state produced by the subscription
// state machine.
func (q *Queries) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	const op = "repository.update_subscription"

	tag, err := q.db.Exec(ctx, `
		UPDATE subscriptions SET
			plan = $2,
			status = $3,
			designs_this_month = $4,
			current_period_start = $5,
			current_period_end = $6,
			billing_customer_ref = $7,
			billing_sub_ref = $8,
			updated_at = $9
		WHERE id = $1`,
		sub.ID, sub.Plan, sub.Status, sub.DesignsThisMonth,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.BillingCustomerRef, sub.BillingSubRef,
		sub.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "subscription", sub.ID.String())
	}
	return nil
}
