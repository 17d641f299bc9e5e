package user

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user: not found")

	// ErrUsernameTaken and ErrEmailTaken are returned by Create on
	// uniqueness violations.
	ErrUsernameTaken = errors.New("user: username already exists")
	ErrEmailTaken    = errors.New("user: email already exists")
)

// Repository is the durable account table. Create persists before
// returning.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	All(ctx context.Context) ([]User, error)
	Close() error
}
