package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the condition without the WHERE keyword, or "" for no condition.
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// Where returns " WHERE <clause>" or "" when there is nothing to filter.
func (c SQLCondition) Where() string {
	if c.Clause == "" {
		return ""
	}
	return " WHERE " + c.Clause
}

// Dialect adapts rendering to a database driver.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Time converts a bound for the created_at column.
	Time func(t time.Time) any
	// Lower names the SQL function that lowercases a text column the way
	// strings.ToLower does.
	Lower string
}

// UnicodeLower is the scalar function the sqlite driver registers. The
// builtin LOWER only folds ASCII there.
const UnicodeLower = "unicode_lower"

var (
	// SQLite stores created_at as unix milliseconds.
	SQLite = Dialect{
		Placeholder: func(int) string { return "?" },
		Time:        func(t time.Time) any { return t.UnixMilli() },
		Lower:       UnicodeLower,
	}

	// Postgres stores created_at as TIMESTAMPTZ.
	Postgres = Dialect{
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		Time:        func(t time.Time) any { return t.UTC() },
		Lower:       "LOWER",
	}
)

// ToSQL renders p against the users table columns. Values are always bound,
// never interpolated.
func ToSQL(p Predicate, d Dialect) SQLCondition {
	var (
		parts  []string
		params []any
	)
	bind := func(v any) string {
		params = append(params, v)
		return d.Placeholder(len(params))
	}
	like := func(column, value string) string {
		return fmt.Sprintf(`%s(%s) LIKE %s ESCAPE '\'`, d.Lower, column, bind("%"+escapeLike(value)+"%"))
	}

	for _, c := range p.clauses {
		switch c := c.(type) {
		case RoleEquals:
			parts = append(parts, "role = "+bind(string(c.Role)))
		case UsernameContains:
			parts = append(parts, like("username", c.Value))
		case EmailContains:
			parts = append(parts, like("email", c.Value))
		case NameContains:
			parts = append(parts, "("+like("first_name", c.Value)+" OR "+like("last_name", c.Value)+")")
		case CreatedBetween:
			if c.From != nil {
				parts = append(parts, "created_at >= "+bind(d.Time(*c.From)))
			}
			if c.To != nil {
				parts = append(parts, "created_at <= "+bind(d.Time(*c.To)))
			}
		}
	}

	return SQLCondition{Clause: strings.Join(parts, " AND "), Params: params}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
