package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// UserStore defines the persistence operations the auth workflow relies on.
//
// Implementations must enforce username and email uniqueness themselves and
// report a violation from Save as domain.ErrUsernameTaken or
// domain.ErrEmailInUse. The workflow's Exists* checks are only a fast path.
type UserStore interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindByUsername returns domain.ErrUserNotFound when nothing matches.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByUsernameOrEmail matches value against the username (exact) or the
	// normalized email. A username match wins when both columns match
	// different users.
	FindByUsernameOrEmail(ctx context.Context, value string) (*domain.User, error)
	// Save inserts the user when ID is empty and updates it otherwise.
	Save(ctx context.Context, user *domain.User) (*domain.User, error)

	// Atomically runs fn as one unit of work against a store scoped to it.
	// Stores without transactions still run fn; their unique constraints
	// remain the authoritative guard.
	Atomically(ctx context.Context, fn func(ctx context.Context, store UserStore) error) error
}
