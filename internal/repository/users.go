package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/printforge/printforge/internal/domain"
)

// GetUserByID resolves a user identity. Returns a domain not-found error
// if no user exists.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "repository.get_user"

	var u domain.User
	err := q.db.QueryRow(ctx, `
		SELECT id, email, created_at, updated_at
		FROM users
		WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "failed to fetch user")
	}
	return &u, nil
}

// CreateUser persists a user identity. Used by registration plumbing and
// test fixtures; this core never mutates users beyond insertion.
func (q *Queries) CreateUser(ctx context.Context, u *domain.User) error {
	const op = "repository.create_user"

	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to create user")
	}
	return nil
}
