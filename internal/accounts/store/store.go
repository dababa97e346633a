package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// ConflictError is a unique-constraint violation on Field. It matches
// ErrAlreadyExists under errors.Is.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %s already exists", e.Field)
}

func (e *ConflictError) Is(target error) bool { return target == ErrAlreadyExists }

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories are reached through it so that a transaction
// scope can hand out the same repositories bound to the open transaction.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error, the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying connection pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx exposes the repositories bound to an open transaction. Nested
// transactions are not supported.
type Tx interface {
	Users() Users
}

type Users interface {
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	// GetUserByUsername is an exact, case-sensitive match.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail matches the stored (lowercased) address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u ignoring u.ID and returns the assigned id.
	// A duplicate username or email yields a *ConflictError.
	CreateUser(ctx context.Context, u domain.User) (int64, error)

	// UpdateUser overwrites every mutable column of the row with u.ID.
	// Returns ErrNotFound when no such row exists.
	UpdateUser(ctx context.Context, u domain.User) error

	// DeleteUser reports whether a row was removed.
	DeleteUser(ctx context.Context, id int64) (bool, error)

	// QueryPage returns the rows of page pageNumber (1-based) ordered by id,
	// together with the number of rows matching p across all pages.
	QueryPage(ctx context.Context, pageNumber, pageSize int, p predicate.Predicate) ([]domain.User, int64, error)

	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}
