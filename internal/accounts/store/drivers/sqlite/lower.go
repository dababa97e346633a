package sqlite

import (
	"database/sql/driver"
	"strings"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
	"modernc.org/sqlite"
)

// The builtin LOWER leaves non-ASCII letters alone, so filters render
// against this instead and fold exactly like the in-memory matcher.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction(predicate.UnicodeLower, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
