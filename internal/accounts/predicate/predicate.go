// Package predicate turns a domain.FilterSet into composable user clauses
// that can be evaluated in memory or rendered as parameterised SQL.
package predicate

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
)

// Clause is one independent condition on a user.
type Clause interface {
	Match(u domain.User) bool
}

type RoleEquals struct {
	Role domain.Role
}

func (c RoleEquals) Match(u domain.User) bool { return u.Role == c.Role }

// UsernameContains matches a case-insensitive substring. Value is stored lowercased.
type UsernameContains struct {
	Value string
}

func (c UsernameContains) Match(u domain.User) bool { return containsFold(u.Username, c.Value) }

// EmailContains matches a case-insensitive substring. Value is stored lowercased.
type EmailContains struct {
	Value string
}

func (c EmailContains) Match(u domain.User) bool { return containsFold(u.Email, c.Value) }

// NameContains matches first or last name. Value is stored lowercased.
type NameContains struct {
	Value string
}

func (c NameContains) Match(u domain.User) bool {
	return containsFold(u.FirstName, c.Value) || containsFold(u.LastName, c.Value)
}

// CreatedBetween bounds CreatedAt inclusively. Either bound may be nil.
type CreatedBetween struct {
	From *time.Time
	To   *time.Time
}

func (c CreatedBetween) Match(u domain.User) bool {
	if c.From != nil && u.CreatedAt.Before(*c.From) {
		return false
	}
	if c.To != nil && u.CreatedAt.After(*c.To) {
		return false
	}
	return true
}

// Predicate is a conjunction of clauses. The zero value matches every user.
type Predicate struct {
	clauses []Clause
}

// Build collects one clause per non-empty filter field. Text values are
// trimmed and whitespace-only values are dropped. Time bounds are truncated
// to the millisecond precision timestamps are stored with.
func Build(f domain.FilterSet) Predicate {
	var p Predicate

	if f.Role != nil {
		p.clauses = append(p.clauses, RoleEquals{Role: *f.Role})
	}
	if v := normalize(f.Username); v != "" {
		p.clauses = append(p.clauses, UsernameContains{Value: v})
	}
	if v := normalize(f.Email); v != "" {
		p.clauses = append(p.clauses, EmailContains{Value: v})
	}
	if v := normalize(f.Name); v != "" {
		p.clauses = append(p.clauses, NameContains{Value: v})
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		p.clauses = append(p.clauses, CreatedBetween{
			From: truncateMillis(f.CreatedFrom),
			To:   truncateMillis(f.CreatedTo),
		})
	}

	return p
}

// Match reports whether u satisfies every clause.
func (p Predicate) Match(u domain.User) bool {
	for _, c := range p.clauses {
		if !c.Match(u) {
			return false
		}
	}
	return true
}

// Clauses returns a copy of the clauses.
func (p Predicate) Clauses() []Clause {
	return append([]Clause(nil), p.clauses...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// containsFold lowercases with strings.ToLower; the SQL side must fold the
// same way (see UnicodeLower).
func containsFold(field, lowered string) bool {
	return strings.Contains(strings.ToLower(field), lowered)
}

func truncateMillis(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Millisecond)
	return &v
}
