package domain

import "time"

// FilterSet holds optional listing constraints. Zero-value fields are not
// applied, so the zero FilterSet matches every user.
type FilterSet struct {
	Role     *Role
	Username string // contains, case-insensitive
	Email    string // contains, case-insensitive
	Name     string // contains on first or last name, case-insensitive

	// CreatedFrom and CreatedTo bound CreatedAt, both inclusive.
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
