package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity that owns subscriptions and designs. This core
// never mutates users; it only resolves ownership.
type User struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
