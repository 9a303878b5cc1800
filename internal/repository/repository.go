// Package repository provides Postgres persistence for designs,
// subscriptions, users, and the background job queue, written against
// pgx/v5. Queries is the single query surface; Store is the
// implementation-agnostic view the service layer depends on.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printforge/printforge/internal/domain"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence contract the service layer depends on. It is
// satisfied by *Queries; tests substitute in-memory fakes.
type Store interface {
	// WithinTx runs fn against a transaction-bound Store. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error

	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	// GetSubscriptionByUserForUpdate locks the subscription row for the
	// duration of the surrounding transaction, serializing concurrent
	// quota checks for the same user.
	GetSubscriptionByUserForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	ListSubscriptionsDueReset(ctx context.Context, limit int32) ([]*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error

	CreateDesign(ctx context.Context, design *domain.Design) error
	GetDesignByID(ctx context.Context, id uuid.UUID) (*domain.Design, error)
	GetDesignByIDAny(ctx context.Context, id uuid.UUID) (*domain.Design, error)
	UpdateDesign(ctx context.Context, design *domain.Design) error
	ListDesignsByUser(ctx context.Context, params domain.ListDesignsParams) (*domain.ListDesignsResult, error)
	CountDesignsByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	EnqueueRenderJob(ctx context.Context, designID uuid.UUID) error
}

// Queries implements Store against Postgres.
type Queries struct {
	db   DBTX
	pool *pgxpool.Pool // nil when transaction-bound
}

// New creates a Queries backed by the given pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{db: pool, pool: pool}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Begin starts a transaction and returns it together with a
// transaction-bound Queries. The caller owns commit and rollback.
func (q *Queries) Begin(ctx context.Context) (pgx.Tx, *Queries, error) {
	if q.pool == nil {
		return nil, nil, fmt.Errorf("begin transaction: already transaction-bound")
	}
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, q.WithTx(tx), nil
}

// WithinTx implements Store. Nested calls reuse the enclosing transaction.
func (q *Queries) WithinTx(ctx context.Context, fn func(Store) error) error {
	if q.pool == nil {
		// Already transaction-bound.
		return fn(q)
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(q.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
