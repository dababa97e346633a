package postgres

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint turns a unique violation on users_<field>_key into a
// *store.ConflictError for that field.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}

	field := strings.TrimSuffix(strings.TrimPrefix(pgErr.ConstraintName, "users_"), "_key")
	if field == "" || field == pgErr.ConstraintName {
		field = "record"
	}
	return &store.ConflictError{Field: field}
}
