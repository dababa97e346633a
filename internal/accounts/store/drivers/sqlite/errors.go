package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint turns "UNIQUE constraint failed: users.email" into a
// *store.ConflictError for the email field.
func mapConstraint(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}

	field := "record"
	msg := se.Error()
	if i := strings.LastIndex(msg, "users."); i >= 0 {
		field = strings.TrimRight(msg[i+len("users."):], ") ")
		if j := strings.IndexAny(field, ", "); j >= 0 {
			field = field[:j]
		}
	}
	return &store.ConflictError{Field: field}
}
